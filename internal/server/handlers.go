package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/gradekeep/gradekeep/internal/server/response"
	"github.com/gradekeep/gradekeep/pkg/assignments"
	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/merge"
	"github.com/gradekeep/gradekeep/pkg/tables"
)

// mergeResponse is the payload returned by POST /api/v1/merge.
type mergeResponse struct {
	Workspace  string                        `json:"workspace"`
	ExpiresAt  utc.Time                      `json:"expires_at"`
	Files      []string                      `json:"files"`
	ArchiveURL string                        `json:"archive_url"`
	Stats      map[string]merge.SectionStats `json:"stats"`
	Orphans    int                           `json:"orphans"`
	Mismatches int                           `json:"mismatches"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		response.NotFound(w, "no such page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "ok",
		"version": s.app.Version(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleMerge accepts a multipart upload of lecture gradebooks plus
// either a master gradebook or per-assignment exports, runs the merge,
// and leaves the outputs in a fresh workspace for download.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		response.BadRequest(w, "invalid multipart upload", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	lectures := r.MultipartForm.File["lecture"]
	masters := r.MultipartForm.File["master"]
	assignmentUploads := r.MultipartForm.File["assignment"]

	if len(lectures) == 0 {
		response.BadRequest(w, "at least one lecture file is required", "")
		return
	}
	if len(masters) > 1 {
		response.BadRequest(w, "at most one master file is allowed", "")
		return
	}
	if len(masters) == 0 && len(assignmentUploads) == 0 {
		response.BadRequest(w, "provide a master file or assignment files", "")
		return
	}

	sections, err := loadUploads(lectures)
	if err != nil {
		response.FromError(w, err)
		return
	}

	merger := merge.New(merge.WithLogger(s.logger))

	var result *merge.Result
	if len(masters) == 1 {
		master, err := loadUpload(masters[0])
		if err != nil {
			response.FromError(w, err)
			return
		}
		result, err = merger.MergeMaster(sections, master)
		if err != nil {
			response.FromError(w, err)
			return
		}
	} else {
		srcs, names, err := loadAssignmentUploads(assignmentUploads)
		if err != nil {
			response.FromError(w, err)
			return
		}
		result, err = merger.MergeAssignments(sections, srcs, names)
		if err != nil {
			response.FromError(w, err)
			return
		}
	}

	ws, err := s.workspaces.Create()
	if err != nil {
		response.InternalError(w, err)
		return
	}

	var files []string
	for _, section := range result.Sections {
		name := strings.TrimSuffix(section.Name, ".csv") + "_merged.csv"
		path, err := ws.resolve(name)
		if err != nil {
			response.FromError(w, err)
			return
		}
		if err := section.Save(path); err != nil {
			s.logger.Error().Err(err).Str("file", name).Msg("failed to write merged gradebook")
			response.InternalError(w, err)
			return
		}
		files = append(files, name)
	}
	if len(result.Orphans) > 0 {
		orphans := result.OrphanTable()
		if err := orphans.Save(filepath.Join(ws.dir, orphans.Name)); err != nil {
			response.InternalError(w, err)
			return
		}
		files = append(files, orphans.Name)
	}
	if len(result.Mismatches) > 0 {
		mismatches := result.MismatchTable()
		if err := mismatches.Save(filepath.Join(ws.dir, mismatches.Name)); err != nil {
			response.InternalError(w, err)
			return
		}
		files = append(files, mismatches.Name)
	}

	s.logger.Info().
		Str("workspace", ws.token).
		Int("sections", len(result.Sections)).
		Int("orphans", len(result.Orphans)).
		Int("mismatches", len(result.Mismatches)).
		Msg("merge completed")

	response.OK(w, mergeResponse{
		Workspace:  ws.token,
		ExpiresAt:  utc.Time{Time: ws.created.Add(s.config.WorkspaceTTL)},
		Files:      files,
		ArchiveURL: apiPrefix + "/workspaces/" + ws.token + "/archive",
		Stats:      result.Stats,
		Orphans:    len(result.Orphans),
		Mismatches: len(result.Mismatches),
	})
}

func (s *Server) handleListWorkspace(w http.ResponseWriter, token string) {
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
	response.OK(w, map[string]any{
		"workspace":  ws.token,
		"expires_at": utc.Time{Time: ws.created.Add(s.config.WorkspaceTTL)},
		"files":      files,
	})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, token string) {
	if _, err := s.workspaces.Get(token); err != nil {
		response.NotFound(w, "workspace not found or expired")
		return
	}
	s.workspaces.Remove(token)
	response.OK(w, map[string]any{"deleted": token})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, token, name string) {
	ws, err := s.workspaces.Get(token)
	if err != nil {
		response.NotFound(w, "workspace not found or expired")
		return
	}
	path, err := ws.resolve(name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// loadUpload parses one multipart CSV upload into a table named after
// the uploaded file.
func loadUpload(fh *multipart.FileHeader) (*tables.Table, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return tables.Parse(data, filepath.Base(fh.Filename), tables.WithTrailerRepair())
}

func loadUploads(fhs []*multipart.FileHeader) ([]*tables.Table, error) {
	out := make([]*tables.Table, len(fhs))
	for i, fh := range fhs {
		t, err := loadUpload(fh)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// loadAssignmentUploads parses per-assignment uploads, naming each
// target column from its filename. Unrecognized names are rejected so
// the client can fix the upload.
func loadAssignmentUploads(fhs []*multipart.FileHeader) ([]*tables.Table, map[string]string, error) {
	srcs := make([]*tables.Table, 0, len(fhs))
	names := make(map[string]string)
	for _, fh := range fhs {
		base := filepath.Base(fh.Filename)
		_, short, ok := assignments.ParseFilename(base)
		if !ok {
			return nil, nil, errors.NewValidationError("assignment", base, "unrecognized assignment filename")
		}
		t, err := loadUpload(fh)
		if err != nil {
			return nil, nil, err
		}
		srcs = append(srcs, t)
		names[t.Name] = short
	}
	return srcs, names, nil
}
