package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/cmd/application"
)

const sectionCSV = "Last Name,First Name,School Email,Student ID,W1 PA\n" +
	"Doe,Jane,jdoe@school.edu,1234567,\n" +
	"Smith,Alex,asmith@school.edu,7654321,\n"

const masterCSV = "Student ID,W1 PA\n" +
	"1234567,95\n" +
	"7654321,80\n"

const assignmentCSV = "Student ID,Percent score\n" +
	"1234567,88\n"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	srv := New(&application.Mock{}, Config{
		WorkspaceTTL:   time.Minute,
		MaxUploadBytes: 8 << 20,
	})
	t.Cleanup(func() {
		srv.workspaces.removeAll()
		_ = srv.Shutdown(nil)
	})
	return srv, srv.Handler()
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func postMerge(t *testing.T, handler http.Handler, files map[string]map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, uploads := range files {
		for name, content := range uploads {
			part, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = part.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	require.Nil(t, env.Error)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestHandleMergeMaster(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMerge(t, handler, map[string]map[string]string{
		"lecture": {"section_a.csv": sectionCSV},
		"master":  {"master.csv": masterCSV},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec.Body)
	require.Nil(t, env.Error)

	var data mergeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Workspace)
	assert.Contains(t, data.Files, "section_a_merged.csv")
	assert.Equal(t, 0, data.Orphans)
	assert.Equal(t, 0, data.Mismatches)

	// The merged section is downloadable and carries the scores.
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/workspaces/"+data.Workspace+"/files/section_a_merged.csv", nil)
	dl := httptest.NewRecorder()
	handler.ServeHTTP(dl, req)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Body.String(), "95")
	assert.Contains(t, dl.Body.String(), "80")
}

func TestHandleMergeAssignments(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMerge(t, handler, map[string]map[string]string{
		"lecture":    {"section_a.csv": sectionCSV},
		"assignment": {"Week_1_Participation_Activities_bblearn.csv": assignmentCSV},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec.Body)
	require.Nil(t, env.Error)

	var data mergeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/workspaces/"+data.Workspace+"/files/section_a_merged.csv", nil)
	dl := httptest.NewRecorder()
	handler.ServeHTTP(dl, req)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Body.String(), "88")
}

func TestHandleMergeArchive(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMerge(t, handler, map[string]map[string]string{
		"lecture": {"section_a.csv": sectionCSV},
		"master":  {"master.csv": masterCSV},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec.Body)
	var data mergeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))

	req := httptest.NewRequest(http.MethodGet, data.ArchiveURL, nil)
	ar := httptest.NewRecorder()
	handler.ServeHTTP(ar, req)
	require.Equal(t, http.StatusOK, ar.Code)
	assert.Equal(t, "application/zip", ar.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(ar.Body.Bytes()), int64(ar.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "section_a_merged.csv", zr.File[0].Name)
}

func TestHandleMergeValidation(t *testing.T) {
	_, handler := newTestServer(t)

	tests := []struct {
		name    string
		files   map[string]map[string]string
		message string
	}{
		{
			name:    "no lecture files",
			files:   map[string]map[string]string{"master": {"master.csv": masterCSV}},
			message: "lecture",
		},
		{
			name:    "no source files",
			files:   map[string]map[string]string{"lecture": {"section_a.csv": sectionCSV}},
			message: "master",
		},
		{
			name: "unrecognized assignment filename",
			files: map[string]map[string]string{
				"lecture":    {"section_a.csv": sectionCSV},
				"assignment": {"notes.csv": assignmentCSV},
			},
			message: "assignment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMerge(t, handler, tt.files)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec.Body)
			require.NotNil(t, env.Error)
			assert.Contains(t, strings.ToLower(env.Error.Message), tt.message)
		})
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	_, handler := newTestServer(t)

	rec := postMerge(t, handler, map[string]map[string]string{
		"lecture": {"section_a.csv": sectionCSV},
		"master":  {"master.csv": masterCSV},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec.Body)
	var data mergeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))

	// Listing shows the output files.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/"+data.Workspace, nil)
	list := httptest.NewRecorder()
	handler.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "section_a_merged.csv")

	// Deleting removes the workspace and its files.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/workspaces/"+data.Workspace, nil)
	del := httptest.NewRecorder()
	handler.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/workspaces/"+data.Workspace+"/files/section_a_merged.csv", nil)
	gone := httptest.NewRecorder()
	handler.ServeHTTP(gone, req)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestUnknownWorkspace(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/deadbeef/files/out.csv", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
