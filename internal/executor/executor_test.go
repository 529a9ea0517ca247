package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ryo-cool/go-concurrency-learner/internal/guard"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// fakeCompiler returns a canned response, or blocks until released when block is set
type fakeCompiler struct {
	mu      sync.Mutex
	calls   int
	resp    *playground.Response
	err     error
	block   bool
	started chan struct{}
}

func (f *fakeCompiler) Compile(ctx context.Context, code string) (*playground.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		close(f.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func (f *fakeCompiler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestClient(c Compiler, opts ...Option) *Client {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(c, opts...)
}

func kinds(records []models.OutputRecord) []models.OutputKind {
	out := make([]models.OutputKind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}

func TestExecuteGuardRejectionMakesNoRequest(t *testing.T) {
	fc := &fakeCompiler{}
	c := newTestClient(fc)

	records, ok := c.Execute(context.Background(), "package main\nimport \"os/exec\"")

	require.True(t, ok)
	require.Equal(t, 0, fc.Calls())
	require.Len(t, records, 1)
	require.Equal(t, models.OutputError, records[0].Kind)
	require.Equal(t, guard.ReasonDisallowedPackage, records[0].Content)
	require.Equal(t, "1700000000000-validation-error", records[0].ID)
	require.Equal(t, records, c.Outputs())

	run := c.LastRun()
	require.Equal(t, OutcomeRejected, run.Outcome)
	require.True(t, errors.Is(run.Err, ErrGuardRejected))
	require.True(t, errors.Is(run.Err, guard.ErrGuardRejected))
	require.Equal(t, StateIdle, c.State())
}

func TestExecuteEvents(t *testing.T) {
	fc := &fakeCompiler{resp: &playground.Response{Events: []playground.Event{
		{Message: "a\n", Kind: "stdout"},
		{Message: "b\n", Kind: "stderr"},
		{Message: "c\n", Kind: "stdout"},
	}}}
	c := newTestClient(fc)

	records, ok := c.Execute(context.Background(), "package main")

	require.True(t, ok)
	require.Equal(t, []models.OutputKind{
		models.OutputInfo, models.OutputStdout, models.OutputError, models.OutputStdout,
	}, kinds(records))
	require.Equal(t, MsgCompiling, records[0].Content)
	require.Equal(t, "1700000000000-start", records[0].ID)
	require.Equal(t, "a\n", records[1].Content)
	require.Equal(t, "1700000000000-0", records[1].ID)
	require.Equal(t, "1700000000000-2", records[3].ID)
	require.Equal(t, OutcomeCompleted, c.LastRun().Outcome)
	require.Equal(t, StateIdle, c.State())
}

func TestExecuteCompileErrorShortCircuits(t *testing.T) {
	fc := &fakeCompiler{resp: &playground.Response{
		Errors: "prog.go:3:1: syntax error",
		Events: []playground.Event{{Message: "ignored", Kind: "stdout"}},
	}}
	c := newTestClient(fc)

	records, _ := c.Execute(context.Background(), "package main")

	require.Len(t, records, 2)
	require.Equal(t, models.OutputError, records[1].Kind)
	require.Equal(t, "prog.go:3:1: syntax error", records[1].Content)

	run := c.LastRun()
	require.Equal(t, OutcomeFailed, run.Outcome)
	require.Equal(t, KindCompile, run.Kind)
}

func TestExecuteNoOutput(t *testing.T) {
	c := newTestClient(&fakeCompiler{resp: &playground.Response{}})

	records, _ := c.Execute(context.Background(), "package main")

	require.Len(t, records, 2)
	require.Equal(t, models.OutputInfo, records[1].Kind)
	require.Equal(t, MsgNoOutput, records[1].Content)
	require.Equal(t, "1700000000000-complete", records[1].ID)
}

func TestExecuteTransportError(t *testing.T) {
	fc := &fakeCompiler{err: &playground.StatusError{StatusCode: 500}}
	c := newTestClient(fc)

	records, _ := c.Execute(context.Background(), "package main")

	require.Len(t, records, 2)
	require.Equal(t, models.OutputError, records[1].Kind)
	require.Equal(t, "実行エラー: HTTP error! status: 500", records[1].Content)

	run := c.LastRun()
	require.Equal(t, KindTransport, run.Kind)
	require.Equal(t, RemoteUnknown, run.Remote)
	require.True(t, errors.Is(run.Err, ErrTransport))
	require.True(t, errors.Is(run.Err, playground.ErrUnexpectedStatus))
}

func TestExecuteNetworkError(t *testing.T) {
	c := newTestClient(&fakeCompiler{err: errors.New("connection refused")})

	records, _ := c.Execute(context.Background(), "package main")

	require.Equal(t, MsgExecutionError+"connection refused", records[len(records)-1].Content)
	run := c.LastRun()
	require.Equal(t, OutcomeFailed, run.Outcome)
	require.Equal(t, RemoteUnknown, run.Remote)
}

func TestExecuteRefusesConcurrentRun(t *testing.T) {
	fc := &fakeCompiler{block: true, started: make(chan struct{})}
	c := newTestClient(fc)

	done := make(chan []models.OutputRecord)
	go func() {
		records, _ := c.Execute(context.Background(), "package main")
		done <- records
	}()
	<-fc.started

	require.Equal(t, StateRunning, c.State())
	records, ok := c.Execute(context.Background(), "package main")
	require.False(t, ok)
	require.Nil(t, records)
	require.Equal(t, 1, fc.Calls())

	require.True(t, c.Cancel())
	<-done
}

func TestCancelDuringRun(t *testing.T) {
	fc := &fakeCompiler{block: true, started: make(chan struct{})}
	var (
		mu       sync.Mutex
		observed []models.OutputRecord
	)
	c := newTestClient(fc, WithObserver(func(r models.OutputRecord) {
		mu.Lock()
		observed = append(observed, r)
		mu.Unlock()
	}))

	done := make(chan []models.OutputRecord)
	go func() {
		records, _ := c.Execute(context.Background(), "package main")
		done <- records
	}()
	<-fc.started

	require.True(t, c.Cancel())
	// the external cancel appends to what is currently shown
	require.Equal(t, []models.OutputKind{models.OutputInfo, models.OutputInfo}, kinds(c.Outputs()))

	// observers see the cancelled record as soon as Cancel returns
	mu.Lock()
	require.Len(t, observed, 2)
	require.Equal(t, MsgCancelled, observed[1].Content)
	mu.Unlock()

	records := <-done
	require.Len(t, records, 2)
	require.Equal(t, MsgCompiling, records[0].Content)
	require.Equal(t, MsgCancelled, records[1].Content)
	require.Equal(t, "1700000000000-cancelled", records[1].ID)

	run := c.LastRun()
	require.Equal(t, OutcomeCancelled, run.Outcome)
	require.Equal(t, RemoteUnknown, run.Remote)
	require.True(t, errors.Is(run.Err, ErrCancelled))
	require.Equal(t, StateIdle, c.State())

	// the settled run does not publish the cancelled record twice
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 2)
	require.Equal(t, MsgCompiling, observed[0].Content)
	require.Equal(t, c.Outputs()[1].Content, observed[1].Content)
}

func TestCancelWhenIdle(t *testing.T) {
	c := newTestClient(&fakeCompiler{resp: &playground.Response{}})
	require.False(t, c.Cancel())
	require.Empty(t, c.Outputs())
}

func TestParentContextCancellation(t *testing.T) {
	fc := &fakeCompiler{block: true, started: make(chan struct{})}
	c := newTestClient(fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []models.OutputRecord)
	go func() {
		records, _ := c.Execute(ctx, "package main")
		done <- records
	}()
	<-fc.started
	cancel()

	records := <-done
	require.Equal(t, MsgCancelled, records[len(records)-1].Content)
	require.Equal(t, OutcomeCancelled, c.LastRun().Outcome)
}

func TestRecordsReplacedBetweenRuns(t *testing.T) {
	fc := &fakeCompiler{resp: &playground.Response{Events: []playground.Event{{Message: "one", Kind: "stdout"}}}}
	c := newTestClient(fc)

	c.Execute(context.Background(), "package main")
	require.Len(t, c.Outputs(), 2)

	fc.resp = &playground.Response{}
	c.Execute(context.Background(), "package main")
	outputs := c.Outputs()
	require.Len(t, outputs, 2)
	require.Equal(t, MsgNoOutput, outputs[1].Content)

	c.Clear()
	require.Empty(t, c.Outputs())
}
