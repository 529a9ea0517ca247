package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Ryo-cool/go-concurrency-learner/internal/cache"
	"github.com/Ryo-cool/go-concurrency-learner/internal/config"
	"github.com/Ryo-cool/go-concurrency-learner/internal/executor"
	"github.com/Ryo-cool/go-concurrency-learner/internal/health"
	"github.com/Ryo-cool/go-concurrency-learner/internal/lessons"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
	"github.com/Ryo-cool/go-concurrency-learner/internal/storage"
	"github.com/Ryo-cool/go-concurrency-learner/internal/validation"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// stubCompiler answers with a fixed response. When gate is set, calls block until it is closed or ctx ends.
type stubCompiler struct {
	mu      sync.Mutex
	calls   int
	resp    *playground.Response
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (c *stubCompiler) Compile(ctx context.Context, code string) (*playground.Response, error) {
	c.mu.Lock()
	c.calls++
	gate, started := c.gate, c.started
	c.mu.Unlock()

	if gate != nil {
		if started != nil {
			close(started)
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.resp, c.err
}

func (c *stubCompiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type testEnv struct {
	server   *httptest.Server
	compiler *stubCompiler
	upstream *stubCompiler
	repo     *storage.MemoryRepository
	sessions *session.MemoryManager
}

func testLessons() *lessons.Loader {
	loader := lessons.NewLoader()
	loader.AddCategory(&models.CategoryInfo{ID: models.CategoryBasic, Name: "基礎", Order: 1})
	loader.Add(&models.Lesson{
		ID:               "basic-1",
		Title:            "Hello Goroutine",
		Category:         models.CategoryBasic,
		InitialCode:      "package main",
		ExpectedKeywords: []string{"go "},
		ValidationMode:   models.ModeKeywords,
	})
	loader.Add(&models.Lesson{
		ID:              "basic-2",
		Title:           "WaitGroup",
		Category:        models.CategoryBasic,
		RequiredOutputs: []string{"all done"},
		ValidationMode:  models.ModeOutput,
	})
	return loader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	compiler := &stubCompiler{resp: &playground.Response{Events: []playground.Event{
		{Message: "all done\n", Kind: playground.KindStdout},
	}}}
	upstream := &stubCompiler{resp: &playground.Response{Events: []playground.Event{
		{Message: "hello\n", Kind: playground.KindStdout},
	}}}

	mr := miniredis.RunT(t)
	respCache, err := cache.NewResponseCache(context.Background(), mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { respCache.Close() })

	repo := storage.NewMemoryRepository()
	sessions := session.NewManager(compiler)
	registry := health.NewRegistry()
	registry.Register("cache", respCache)

	srv := NewServer(config.ServerConfig{RequestTimeout: 5 * time.Second}, Dependencies{
		Lessons:  testLessons(),
		Sessions: sessions,
		Repo:     repo,
		Upstream: upstream,
		Cache:    respCache,
		Health:   registry,
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, compiler: compiler, upstream: upstream, repo: repo, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, learner string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if learner != "" {
		req.Header.Set(LearnerHeader, learner)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// envelope decodes an enveloped response into data
func envelope(t *testing.T, raw []byte, data interface{}) apiError {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *apiError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	if resp.Error != nil {
		return *resp.Error
	}
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return apiError{}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	var ready map[string]interface{}
	envelope(t, body, &ready)
	require.Equal(t, "ready", ready["status"])
}

func TestLessonRoutes(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/lessons?search=WAITGROUP", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Lessons []models.Lesson `json:"lessons"`
		Total   int             `json:"total"`
	}
	envelope(t, body, &list)
	require.Equal(t, 1, list.Total)
	require.Equal(t, "basic-2", list.Lessons[0].ID)

	status, body = env.do(t, http.MethodGet, "/api/v1/lessons/missing", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, MsgLessonNotFound, envelope(t, body, nil).Message)

	status, body = env.do(t, http.MethodGet, "/api/v1/lessons/basic-1/neighbors", "", nil)
	require.Equal(t, http.StatusOK, status)
	var neighbors struct {
		Previous *models.Lesson `json:"previous"`
		Next     *models.Lesson `json:"next"`
	}
	envelope(t, body, &neighbors)
	require.Nil(t, neighbors.Previous)
	require.Equal(t, "basic-2", neighbors.Next.ID)

	status, body = env.do(t, http.MethodGet, "/api/v1/lessons/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	var cats struct {
		Categories []models.CategoryInfo `json:"categories"`
	}
	envelope(t, body, &cats)
	require.Len(t, cats.Categories, 1)
}

func TestPlaygroundProxy(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/playground", "", map[string]string{"code": ""})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, MsgCodeMissing, envelope(t, body, nil).Message)

	status, _ = env.do(t, http.MethodPost, "/api/v1/playground", "", map[string]string{"code": strings.Repeat("a", 10241)})
	require.Equal(t, http.StatusBadRequest, status)

	for i := 0; i < 2; i++ {
		status, body = env.do(t, http.MethodPost, "/api/v1/playground", "", map[string]string{"code": "package main"})
		require.Equal(t, http.StatusOK, status)

		var resp playground.Response
		require.NoError(t, json.Unmarshal(body, &resp))
		require.Equal(t, "hello\n", resp.Events[0].Message)
	}
	// second call is served from the cache
	require.Equal(t, 1, env.upstream.Calls())
}

func TestPlaygroundProxyUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.err = &playground.StatusError{StatusCode: http.StatusBadGateway}

	status, body := env.do(t, http.MethodPost, "/api/v1/playground", "", map[string]string{"code": "package main // fail"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, MsgExecutionFailed, envelope(t, body, nil).Message)
}

func TestScreen(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/screen", "", models.RunRequest{Code: `import "unsafe"`})
	require.Equal(t, http.StatusOK, status)
	var res struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	envelope(t, body, &res)
	require.False(t, res.OK)
}

func createSession(t *testing.T, env *testEnv, learner string) string {
	t.Helper()
	status, body := env.do(t, http.MethodPost, "/api/v1/sessions", learner, models.CreateSessionRequest{LessonID: "basic-2"})
	require.Equal(t, http.StatusCreated, status)
	var info models.ExecutionSession
	envelope(t, body, &info)
	require.NotEmpty(t, info.ID)
	return info.ID
}

func TestSessionRunAndOutputs(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env, "alice")

	status, body := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "alice", models.RunRequest{Code: "package main"})
	require.Equal(t, http.StatusOK, status)
	var run models.RunResponse
	envelope(t, body, &run)
	require.Equal(t, "completed", run.Outcome)
	require.Len(t, run.Outputs, 2)
	require.Equal(t, models.OutputStdout, run.Outputs[1].Kind)

	// other learners cannot see the session
	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/outputs", "bob", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/outputs", "alice", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/outputs", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var outputs struct {
		Outputs []models.OutputRecord `json:"outputs"`
	}
	envelope(t, body, &outputs)
	require.Empty(t, outputs.Outputs)

	status, _ = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "alice", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestSessionRunGuardRejection(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env, "")

	status, body := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "", models.RunRequest{Code: `import "os/exec"`})
	require.Equal(t, http.StatusOK, status)
	var run models.RunResponse
	envelope(t, body, &run)
	require.Equal(t, "rejected", run.Outcome)
	require.Len(t, run.Outputs, 1)
	require.Equal(t, models.OutputError, run.Outputs[0].Kind)
	require.Equal(t, 0, env.compiler.Calls())
}

func TestSessionAlreadyRunning(t *testing.T) {
	env := newTestEnv(t)
	env.compiler.gate = make(chan struct{})
	env.compiler.started = make(chan struct{})
	id := createSession(t, env, "")

	done := make(chan int)
	go func() {
		status, _ := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "", models.RunRequest{Code: "package main"})
		done <- status
	}()
	<-env.compiler.started

	status, body := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "", models.RunRequest{Code: "package main"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "already_running", envelope(t, body, nil).Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, status)
	var cancelled struct {
		Cancelled bool `json:"cancelled"`
	}
	envelope(t, body, &cancelled)
	require.True(t, cancelled.Cancelled)

	require.Equal(t, http.StatusOK, <-done)
}

func TestCheckNeedsExecution(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/lessons/basic-2/check", "", models.CheckRequest{Code: "package main"})
	require.Equal(t, http.StatusOK, status)
	var resp models.CheckResponse
	envelope(t, body, &resp)
	require.True(t, resp.NeedsExecution)
	require.Nil(t, resp.Result)
	require.Equal(t, validation.MsgExecuteFirst, resp.Toast.Message)
}

func TestCheckWithSessionOutputsCompletesLesson(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env, "alice")

	status, _ := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "alice", models.RunRequest{Code: "package main"})
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodPost, "/api/v1/lessons/basic-2/check", "alice", models.CheckRequest{Code: "package main", SessionID: id})
	require.Equal(t, http.StatusOK, status)
	var resp models.CheckResponse
	envelope(t, body, &resp)
	require.False(t, resp.NeedsExecution)
	require.True(t, resp.Result.IsCorrect)
	require.Equal(t, validation.MsgPerfect, resp.Toast.Message)

	p, err := env.repo.GetProgress(context.Background(), "alice", "basic-2")
	require.NoError(t, err)
	require.Equal(t, models.ProgressCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)

	subs, err := env.repo.ListSubmissions(context.Background(), "alice", "basic-2", 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestCheckRejectsRunningSession(t *testing.T) {
	env := newTestEnv(t)
	env.compiler.gate = make(chan struct{})
	env.compiler.started = make(chan struct{})
	id := createSession(t, env, "alice")

	done := make(chan int)
	go func() {
		status, _ := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/run", "alice", models.RunRequest{Code: "package main"})
		done <- status
	}()
	<-env.compiler.started

	status, body := env.do(t, http.MethodPost, "/api/v1/lessons/basic-2/check", "alice", models.CheckRequest{Code: "package main", SessionID: id})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "already_running", envelope(t, body, nil).Code)

	subs, err := env.repo.ListSubmissions(context.Background(), "alice", "basic-2", 10)
	require.NoError(t, err)
	require.Empty(t, subs)

	close(env.compiler.gate)
	require.Equal(t, http.StatusOK, <-done)

	// the finished run can be graded
	status, body = env.do(t, http.MethodPost, "/api/v1/lessons/basic-2/check", "alice", models.CheckRequest{Code: "package main", SessionID: id})
	require.Equal(t, http.StatusOK, status)
	var resp models.CheckResponse
	envelope(t, body, &resp)
	require.True(t, resp.Result.IsCorrect)
}

func TestCheckKeywordsFailure(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/lessons/basic-1/check", "alice", models.CheckRequest{Code: "package main"})
	require.Equal(t, http.StatusOK, status)
	var resp models.CheckResponse
	envelope(t, body, &resp)
	require.False(t, resp.Result.IsCorrect)
	require.Equal(t, validation.MsgRequirementsUnmet, resp.Toast.Message)

	_, err := env.repo.GetProgress(context.Background(), "alice", "basic-1")
	require.ErrorIs(t, err, storage.ErrProgressNotFound)
}

func TestProgressRoutes(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/progress", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/progress", "bad id!", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodGet, "/api/v1/progress/basic-1", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var p models.LessonProgress
	envelope(t, body, &p)
	require.Equal(t, models.ProgressNotStarted, p.Status)

	status, body = env.do(t, http.MethodPost, "/api/v1/progress/basic-1/start", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	envelope(t, body, &p)
	require.Equal(t, models.ProgressInProgress, p.Status)
	require.Equal(t, "package main", p.CurrentCode)

	status, _ = env.do(t, http.MethodPut, "/api/v1/progress/basic-1", "alice", map[string]string{"status": "done"})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPut, "/api/v1/progress/basic-1", "alice", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, status)
	envelope(t, body, &p)
	require.Equal(t, models.ProgressCompleted, p.Status)
	require.Equal(t, "package main", p.CurrentCode)

	status, body = env.do(t, http.MethodGet, "/api/v1/progress", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Progress  []models.LessonProgress `json:"progress"`
		Completed int                     `json:"completed"`
	}
	envelope(t, body, &list)
	require.Len(t, list.Progress, 1)
	require.Equal(t, 1, list.Completed)
}

func TestSessionStream(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env, "")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(StreamMessage{Type: FrameRun, Code: "package main"}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frames []StreamMessage
	for {
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		frames = append(frames, msg)
		if msg.Type == FrameDone {
			break
		}
	}

	require.Len(t, frames, 3)
	require.Equal(t, FrameOutput, frames[0].Type)
	require.Equal(t, executor.MsgCompiling, frames[0].Record.Content)
	require.Equal(t, "all done\n", frames[1].Record.Content)
	require.Equal(t, "completed", frames[2].Outcome)
}
