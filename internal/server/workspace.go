package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// workspace is a temporary directory holding one merge run's outputs.
type workspace struct {
	token   string
	dir     string
	created time.Time
}

// workspaceStore tracks per-request workspaces and sweeps expired ones.
type workspaceStore struct {
	mu     sync.Mutex
	byTok  map[string]*workspace
	ttl    time.Duration
	logger *zerolog.Logger
}

func newWorkspaceStore(ttl time.Duration, logger *zerolog.Logger) *workspaceStore {
	return &workspaceStore{
		byTok:  make(map[string]*workspace),
		ttl:    ttl,
		logger: logger,
	}
}

// Create allocates a fresh workspace directory with a random token.
func (s *workspaceStore) Create() (*workspace, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.WrapIO("token", "workspace", err)
	}
	token := hex.EncodeToString(buf)

	dir, err := os.MkdirTemp("", "gradekeep-"+token[:8]+"-*")
	if err != nil {
		return nil, errors.WrapIO("create", "workspace", err)
	}

	ws := &workspace{token: token, dir: dir, created: time.Now()}
	s.mu.Lock()
	s.byTok[token] = ws
	s.mu.Unlock()
	return ws, nil
}

// Get returns the workspace for a token, or ErrNotFound.
func (s *workspaceStore) Get(token string) (*workspace, error) {
	s.mu.Lock()
	ws, ok := s.byTok[token]
	s.mu.Unlock()
	if !ok {
		return nil, errors.ErrNotFound
	}
	return ws, nil
}

// Remove deletes a workspace and its directory.
func (s *workspaceStore) Remove(token string) {
	s.mu.Lock()
	ws, ok := s.byTok[token]
	delete(s.byTok, token)
	s.mu.Unlock()
	if ok {
		if err := os.RemoveAll(ws.dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", ws.dir).Msg("failed to remove workspace directory")
		}
	}
}

// Run sweeps expired workspaces until the context is canceled, then
// removes everything that remains.
func (s *workspaceStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.removeAll()
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *workspaceStore) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*workspace
	for token, ws := range s.byTok {
		if ws.created.Before(cutoff) {
			expired = append(expired, ws)
			delete(s.byTok, token)
		}
	}
	s.mu.Unlock()

	for _, ws := range expired {
		if err := os.RemoveAll(ws.dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", ws.dir).Msg("failed to remove expired workspace")
			continue
		}
		s.logger.Debug().Str("token", ws.token).Msg("expired workspace removed")
	}
}

func (s *workspaceStore) removeAll() {
	s.mu.Lock()
	all := make([]*workspace, 0, len(s.byTok))
	for token, ws := range s.byTok {
		all = append(all, ws)
		delete(s.byTok, token)
	}
	s.mu.Unlock()

	for _, ws := range all {
		_ = os.RemoveAll(ws.dir)
	}
}

// resolve maps a client-supplied file name to a path inside the
// workspace, rejecting anything that could escape it.
func (ws *workspace) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.NewValidationError("file", name, "invalid file name")
	}
	return filepath.Join(ws.dir, name), nil
}

// files lists the CSV outputs present in the workspace.
func (ws *workspace) files() ([]string, error) {
	entries, err := os.ReadDir(ws.dir)
	if err != nil {
		return nil, errors.WrapIO("read", ws.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
