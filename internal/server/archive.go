package server

import (
	"archive/zip"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gradekeep/gradekeep/internal/server/response"
	"github.com/gradekeep/gradekeep/pkg/errors"
)

// handleArchive streams every output in the workspace as a zip file.
func (s *Server) handleArchive(w http.ResponseWriter, token string) {
	ws, err := s.workspaces.Get(token)
	if err != nil {
		response.NotFound(w, "workspace not found or expired")
		return
	}
	files, err := ws.files()
	if err != nil {
		response.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="gradekeep-`+token[:8]+`.zip"`)

	zw := zip.NewWriter(w)
	for _, name := range files {
		if err := addToArchive(zw, filepath.Join(ws.dir, name), name); err != nil {
			// Headers are already sent; log and abort the stream.
			s.logger.Error().Err(err).Str("file", name).Msg("failed to archive workspace file")
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to finalize archive")
	}
}

func addToArchive(zw *zip.Writer, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapIO("read", path, err)
	}
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
