// Package executor runs learner code on a remote compiler and turns the
// response into an ordered list of output records.
//
// A Client runs at most one submission at a time. A second Execute while a
// run is in flight is refused rather than queued.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Ryo-cool/go-concurrency-learner/internal/guard"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// Record messages
const (
	MsgCompiling      = "コードをコンパイル中..."
	MsgNoOutput       = "プログラムが正常に終了しました（出力なし）"
	MsgCancelled      = "実行がキャンセルされました"
	MsgExecutionError = "実行エラー: "
	MsgInvalidCode    = "無効なコードです"
)

// Compiler sends code to a remote compile-and-run service
type Compiler interface {
	Compile(ctx context.Context, code string) (*playground.Response, error)
}

// State of a client
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Outcome of a finished run
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRejected  Outcome = "rejected"
)

// RemoteState is what is known about the remote side of a run
type RemoteState string

const (
	RemoteNotContacted RemoteState = "not-contacted"
	RemoteCompleted    RemoteState = "completed"
	// RemoteUnknown is reported for cancelled runs and transport failures: the
	// remote service may have received the code and finished the work anyway.
	RemoteUnknown RemoteState = "unknown"
)

// Run summarizes one Execute call
type Run struct {
	Outcome    Outcome
	Kind       ErrorKind
	Err        error
	Remote     RemoteState
	StartedAt  time.Time
	FinishedAt time.Time
	Records    []models.OutputRecord
}

// Duration of the run
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Client executes code through a Compiler
type Client struct {
	compiler Compiler
	logger   *slog.Logger
	now      func() time.Time
	observer func(models.OutputRecord)

	mu      sync.Mutex
	state   State
	cancel  context.CancelCauseFunc
	records []models.OutputRecord
	lastRun *Run
	// set when Cancel already published the cancelled record of the current run
	cancelEmitted bool
}

// Option configures the client
type Option func(*Client)

// WithClock sets the time source for record timestamps and ids
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver registers a callback invoked with every record as it is produced
func WithObserver(fn func(models.OutputRecord)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// New creates an idle client
func New(compiler Compiler, opts ...Option) *Client {
	c := &Client{
		compiler: compiler,
		logger:   slog.Default(),
		now:      time.Now,
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Execute screens code, runs it remotely and returns the produced records.
// The second result is false when a run is already in progress; nothing
// happens in that case. Failures are reported as records, never as errors.
func (c *Client) Execute(ctx context.Context, code string) ([]models.OutputRecord, bool) {
	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return nil, false
	}

	startedAt := c.now()

	screen := guard.Screen(code)
	if !screen.OK {
		reason := screen.Reason
		if reason == "" {
			reason = MsgInvalidCode
		}
		rec := c.record(startedAt, "validation-error", models.OutputError, reason)
		c.records = []models.OutputRecord{rec}
		c.lastRun = &Run{
			Outcome:    OutcomeRejected,
			Kind:       KindGuardRejected,
			Err:        fmt.Errorf("%w: %w", ErrGuardRejected, screen.Err()),
			Remote:     RemoteNotContacted,
			StartedAt:  startedAt,
			FinishedAt: startedAt,
			Records:    c.records,
		}
		c.mu.Unlock()

		c.logger.Info("code rejected", "rule", screen.Rule)
		c.emit(rec)
		return []models.OutputRecord{rec}, true
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	c.state = StateRunning
	c.cancel = cancel
	c.cancelEmitted = false
	start := c.record(startedAt, "start", models.OutputInfo, MsgCompiling)
	c.records = []models.OutputRecord{start}
	c.mu.Unlock()

	c.emit(start)

	resp, err := c.compiler.Compile(runCtx, code)
	records, run := c.interpret(runCtx, start, resp, err)
	run.StartedAt = startedAt
	run.FinishedAt = c.now()
	run.Records = records
	cancel(nil)

	c.mu.Lock()
	c.state = StateIdle
	c.cancel = nil
	c.records = records
	c.lastRun = run
	pending := records[1:]
	if c.cancelEmitted && run.Outcome == OutcomeCancelled {
		pending = pending[:len(pending)-1]
	}
	c.cancelEmitted = false
	c.mu.Unlock()

	for _, rec := range pending {
		c.emit(rec)
	}

	c.logger.Info("execution finished",
		"outcome", run.Outcome,
		"records", len(records),
		"duration", run.Duration(),
	)

	return models.CloneRecords(records), true
}

// interpret maps a compiler response or failure to records
func (c *Client) interpret(ctx context.Context, start models.OutputRecord, resp *playground.Response, err error) ([]models.OutputRecord, *Run) {
	records := []models.OutputRecord{start}
	now := c.now()

	if err != nil {
		if errors.Is(context.Cause(ctx), ErrCancelled) || errors.Is(err, context.Canceled) {
			records = append(records, c.record(now, "cancelled", models.OutputInfo, MsgCancelled))
			return records, &Run{
				Outcome: OutcomeCancelled,
				Kind:    KindCancelled,
				Err:     ErrCancelled,
				Remote:  RemoteUnknown,
			}
		}

		c.logger.Warn("remote execution failed", "error", err)
		records = append(records, c.record(now, "error", models.OutputError, MsgExecutionError+transportMessage(err)))
		return records, &Run{
			Outcome: OutcomeFailed,
			Kind:    KindTransport,
			Err:     fmt.Errorf("%w: %w", ErrTransport, err),
			Remote:  RemoteUnknown,
		}
	}

	if resp == nil {
		resp = &playground.Response{}
	}

	if resp.Errors != "" {
		records = append(records, c.record(now, "error", models.OutputError, resp.Errors))
		return records, &Run{
			Outcome: OutcomeFailed,
			Kind:    KindCompile,
			Err:     ErrCompile,
			Remote:  RemoteCompleted,
		}
	}

	if len(resp.Events) > 0 {
		for i, ev := range resp.Events {
			kind := models.OutputStdout
			if ev.Kind == playground.KindStderr {
				kind = models.OutputError
			}
			records = append(records, c.record(now, strconv.Itoa(i), kind, ev.Message))
		}
	} else {
		records = append(records, c.record(now, "complete", models.OutputInfo, MsgNoOutput))
	}

	return records, &Run{Outcome: OutcomeCompleted, Remote: RemoteCompleted}
}

// transportMessage keeps status failures short, as learners see this text
func transportMessage(err error) string {
	var statusErr *playground.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return err.Error()
}

// Cancel aborts the in-flight run and appends a cancellation record to the
// current records. It reports false when nothing is running.
func (c *Client) Cancel() bool {
	c.mu.Lock()
	if c.state != StateRunning || c.cancel == nil {
		c.mu.Unlock()
		return false
	}
	c.cancel(ErrCancelled)
	rec := c.record(c.now(), "cancelled", models.OutputInfo, MsgCancelled)
	c.records = append(models.CloneRecords(c.records), rec)
	c.cancelEmitted = true
	c.mu.Unlock()

	c.emit(rec)

	c.logger.Info("execution cancelled")
	return true
}

// Outputs returns a copy of the current records
func (c *Client) Outputs() []models.OutputRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CloneRecords(c.records)
}

// Clear drops the current records
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}

// State returns whether a run is in progress
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastRun returns the summary of the most recent finished run, or nil
func (c *Client) LastRun() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRun == nil {
		return nil
	}
	run := *c.lastRun
	run.Records = models.CloneRecords(run.Records)
	return &run
}

func (c *Client) record(at time.Time, suffix string, kind models.OutputKind, content string) models.OutputRecord {
	return models.OutputRecord{
		ID:        strconv.FormatInt(at.UnixMilli(), 10) + "-" + suffix,
		Kind:      kind,
		Content:   content,
		Timestamp: at,
	}
}

func (c *Client) emit(rec models.OutputRecord) {
	if c.observer != nil {
		c.observer(rec)
	}
}
