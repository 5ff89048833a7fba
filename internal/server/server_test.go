package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sage/internal/docparse"
	"sage/internal/memory"
	"sage/internal/metrics"
	"sage/internal/planner"
	"sage/internal/retrieval"
	"sage/internal/supervisor"
)

type fakeRunner struct {
	gotID  string
	gotReq supervisor.TaskRequest
	result *supervisor.PipelineResult
}

func (f *fakeRunner) Run(_ context.Context, taskID string, req supervisor.TaskRequest) *supervisor.PipelineResult {
	f.gotID, f.gotReq = taskID, req
	if f.result != nil {
		return f.result
	}
	strategy := "go"
	return &supervisor.PipelineResult{TaskID: taskID, Summary: "s", Strategy: &strategy, Message: supervisor.MessageCompleted}
}

type fakeParser struct{}

func (fakeParser) Parse(path string) (string, error) {
	switch filepath.Ext(path) {
	case ".pdf", ".docx":
		data, err := os.ReadFile(path)
		if err != nil {
			return "Widgets sold best. Gadgets lagged.", nil
		}
		return string(data), nil
	default:
		return "", docparse.ErrUnsupportedFormat
	}
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	return "answer based on " + prompt[strings.Index(prompt, "---USER QUESTION---"):], nil
}

type testEnv struct {
	server *Server
	runner *fakeRunner
	deps   Deps
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	mem, err := memory.Open(filepath.Join(t.TempDir(), "mem.json"), nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics.NewCollectors(reg).ObserveGate(metrics.GatePassed)

	runner := &fakeRunner{}
	deps := Deps{
		Pipeline:  runner,
		Tracker:   planner.NewTracker(nil),
		Documents: retrieval.NewEngine(fakeParser{}, nil, fakeGenerator{}, retrieval.Options{}, nil),
		Memory:    mem,
		Gatherer:  reg,
	}
	s, err := NewServer(deps, zap.NewNop(), &Config{Host: "localhost", Port: 5000, UploadDir: t.TempDir()})
	require.NoError(t, err)
	return &testEnv{server: s, runner: runner, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when logger is nil", func(t *testing.T) {
		env := setupTestServer(t)
		_, err := NewServer(env.deps, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when dependencies are missing", func(t *testing.T) {
		_, err := NewServer(Deps{}, zap.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		env := setupTestServer(t)
		s, err := NewServer(env.deps, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, 5000, s.config.Port)
	})
}

func TestLiveness(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", decode[StatusResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "ok", decode[StatusResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sage_gate_total{outcome="passed"} 1`)
}

func TestHandleRunTask(t *testing.T) {
	t.Run("returns the pipeline result", func(t *testing.T) {
		env := setupTestServer(t)
		threshold := 0.7
		rec := env.do(t, http.MethodPost, "/api/task/t1/run", supervisor.TaskRequest{
			Query:             "Summarize quarterly sales trends",
			Goals:             []string{"identify top product"},
			CritiqueThreshold: &threshold,
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "t1", env.runner.gotID)
		assert.Equal(t, []string{"identify top product"}, env.runner.gotReq.Goals)
		require.NotNil(t, env.runner.gotReq.CritiqueThreshold)
		assert.Equal(t, 0.7, *env.runner.gotReq.CritiqueThreshold)

		res := decode[map[string]any](t, rec)
		assert.Equal(t, supervisor.MessageCompleted, res["message"])
		assert.Equal(t, "go", res["strategy"])
	})

	t.Run("gate failure serializes strategy as null", func(t *testing.T) {
		env := setupTestServer(t)
		env.runner.result = &supervisor.PipelineResult{TaskID: "t1", Message: supervisor.MessageGateFailed}

		rec := env.do(t, http.MethodPost, "/api/task/t1/run", supervisor.TaskRequest{Query: "q"})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[map[string]any](t, rec)
		strategy, present := res["strategy"]
		assert.True(t, present)
		assert.Nil(t, strategy)
	})

	t.Run("failed run returns error object", func(t *testing.T) {
		env := setupTestServer(t)
		env.runner.result = &supervisor.PipelineResult{TaskID: "t1", Error: "supervisor failed: boom"}

		rec := env.do(t, http.MethodPost, "/api/task/t1/run", supervisor.TaskRequest{Query: "q"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "supervisor failed: boom", decode[ErrorResponse](t, rec).Error)
	})
}

func TestTaskLifecycle(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/task/t1", CreateTaskRequest{
		Goal:         "ship report",
		TimelineDays: 3,
		Checkpoints:  []planner.Checkpoint{{ID: "a", Description: "draft"}, {ID: "b", Description: "review"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, planner.StatusInProgress, decode[planner.Task](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/task/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[planner.Task](t, rec).Checkpoints, 2)

	rec = env.do(t, http.MethodPatch, "/api/task/t1/checkpoints/a", map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, planner.Progress{Completed: 1, Total: 2, Percentage: 50}, decode[planner.Progress](t, rec))

	rec = env.do(t, http.MethodPatch, "/api/task/t1/checkpoints/zzz", map[string]bool{"completed": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/task/t1/complete", nil)
	assert.False(t, decode[CompleteResponse](t, rec).Completed)

	rec = env.do(t, http.MethodPost, "/api/task/t1/complete?threshold=50", nil)
	assert.True(t, decode[CompleteResponse](t, rec).Completed)

	rec = env.do(t, http.MethodPost, "/api/task/t1/complete?threshold=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/task/t1/progress", nil)
	assert.Equal(t, 50.0, decode[planner.Progress](t, rec).Percentage)

	rec = env.do(t, http.MethodDelete, "/api/task/t1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/task/t1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/task/t1/progress", nil)
	assert.Equal(t, planner.Progress{}, decode[planner.Progress](t, rec))
}

func TestCreateTask_Validation(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/task/t1", CreateTaskRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/task/t1", CreateTaskRequest{Goal: "g", TimelineDays: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocuments(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/document", IngestRequest{Path: "missing.pdf", DocumentID: "report"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ingest := decode[IngestResponse](t, rec)
	assert.Equal(t, "report", ingest.DocumentID)
	assert.Equal(t, 1, ingest.Chunks)

	rec = env.do(t, http.MethodPost, "/api/document", IngestRequest{Path: "notes.txt"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "unsupported")

	rec = env.do(t, http.MethodPost, "/api/document", IngestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/document/report/chunks?q=widgets&k=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ChunksResponse](t, rec).Chunks, 1)

	rec = env.do(t, http.MethodGet, "/api/document/report/chunks?q=widgets&k=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/document/nope/chunks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/document/report/ask", AskRequest{Query: "What sold best?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[AskResponse](t, rec).Answer, "What sold best?")

	rec = env.do(t, http.MethodPost, "/api/document/nope/ask", AskRequest{Query: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestPathConfinedToUploadDir(t *testing.T) {
	env := setupTestServer(t)
	inside := filepath.Join(env.server.config.UploadDir, "inside.pdf")

	testCases := []struct {
		name string
		path string
		want int
	}{
		{name: "relative inside", path: "nested/report.pdf", want: http.StatusCreated},
		{name: "absolute inside", path: inside, want: http.StatusCreated},
		{name: "parent traversal", path: "../outside.pdf", want: http.StatusBadRequest},
		{name: "absolute outside", path: filepath.Join(t.TempDir(), "secret.pdf"), want: http.StatusBadRequest},
		{name: "upload dir itself", path: ".", want: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/document", IngestRequest{Path: tc.path})
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			if tc.want == http.StatusBadRequest {
				assert.Contains(t, decode[ErrorResponse](t, rec).Error, "inside the upload directory")
			}
		})
	}
}

func uploadFile(t *testing.T, env *testEnv, filename, docID, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("document_id", docID))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDocumentUpload_SameNameKeepsSeparateContent(t *testing.T) {
	env := setupTestServer(t)

	var wg sync.WaitGroup
	for _, id := range []string{"first", "second"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := uploadFile(t, env, "report.docx", id, "Content of "+id+".")
			assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		}()
	}
	wg.Wait()

	for _, id := range []string{"first", "second"} {
		doc, err := env.deps.Documents.Document(id)
		require.NoError(t, err)
		assert.Equal(t, []string{"Content of " + id + "."}, doc.Chunks)
	}
	saved, err := filepath.Glob(filepath.Join(env.server.config.UploadDir, "*-report.docx"))
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestDocumentUpload(t *testing.T) {
	env := setupTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "../../q3.docx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("First sentence. Second sentence."))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("document_id", "q3"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "q3", decode[IngestResponse](t, rec).DocumentID)

	saved, err := filepath.Glob(filepath.Join(env.server.config.UploadDir, "*-q3.docx"))
	require.NoError(t, err)
	assert.Len(t, saved, 1, "upload must be saved inside the upload dir under its base name")

	doc, err := env.deps.Documents.Document("q3")
	require.NoError(t, err)
	assert.Equal(t, []string{"First sentence. Second sentence."}, doc.Chunks)
}

func TestMemoryRoutes(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/memory/topic", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/memory/topic", SetMemoryRequest{Value: map[string]any{"focus": "widgets"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/memory/topic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[MemoryEntryResponse](t, rec)
	assert.Equal(t, "topic", entry.Key)
	assert.Equal(t, map[string]any{"focus": "widgets"}, entry.Value)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestNotFoundOr(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, notFoundOr(c, errors.New("disk full"), planner.ErrTaskNotFound))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
