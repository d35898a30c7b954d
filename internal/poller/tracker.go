package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/deeres/gateway/internal/model"
)

// State is the lifecycle phase of a tracked report job.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StatePolling
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is one observation of a tracked job. The stream of snapshots is
// finite: it ends after a StateCompleted or StateFailed snapshot, or when
// the tracker is closed.
type Snapshot struct {
	State      State
	JobID      string
	Status     model.JobStatus
	Progress   float64
	Stage      int
	StageLabel string
	Elapsed    time.Duration
	Report     *model.ReportResult
	Detail     string // failure message, set when State is StateFailed
}

// StatusSource is anything that can submit a report job and answer status
// checks: the in-process report service or a remote gateway.
type StatusSource interface {
	SubmitReport(ctx context.Context, req *model.ReportRequest) (*model.JobResult, error)
	JobStatus(ctx context.Context, jobID string) (*model.JobResult, error)
}

// Options tune the tracker's timers. Zero values pick the defaults.
type Options struct {
	PollInterval  time.Duration // status poll cadence, default 3s
	TickInterval  time.Duration // presentation tick cadence, default 1s
	StageEstimate time.Duration // simulated stage advance cadence, default 15s
	Buffer        int           // snapshot channel buffer, default 16
}

var (
	// ErrSubmitInFlight means this tracker already drives a job. A tracker
	// is single-use; start a new one for a fresh submission.
	ErrSubmitInFlight = errors.New("a report job is already in flight")

	// ErrTrackerClosed means Close was already called.
	ErrTrackerClosed = errors.New("tracker is closed")

	errJobIDRequired = errors.New("job id is required")
)

// Tracker drives a single report job from submission to a terminal state,
// emitting stage-mapped snapshots. All timers stop on every exit path:
// terminal status, context cancellation, or Close.
type Tracker struct {
	source StatusSource
	opts   Options

	mu      sync.Mutex
	state   State
	started bool
	closed  bool

	snapshots chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
	snapOnce  sync.Once
}

func NewTracker(source StatusSource, opts Options) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.StageEstimate <= 0 {
		opts.StageEstimate = 15 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	return &Tracker{
		source:    source,
		opts:      opts,
		state:     StateIdle,
		snapshots: make(chan Snapshot, opts.Buffer),
		done:      make(chan struct{}),
	}
}

// Snapshots returns the snapshot stream. The channel is closed after the
// terminal snapshot or once the tracker shuts down.
func (t *Tracker) Snapshots() <-chan Snapshot {
	return t.snapshots
}

// State returns the current lifecycle phase.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Submit starts a new report job. An empty or whitespace-only topic is a
// silent no-op, not an error. Re-submission while a job is in flight is
// rejected.
func (t *Tracker) Submit(ctx context.Context, topic string, overrides map[string]interface{}) error {
	if strings.TrimSpace(topic) == "" {
		return nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTrackerClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrSubmitInFlight
	}
	t.started = true
	t.state = StateSubmitting
	t.mu.Unlock()

	req := &model.ReportRequest{Topic: topic, ConfigOverrides: overrides}
	go t.run(ctx, req, "")
	return nil
}

// Watch attaches to an already-submitted job, entering the polling phase
// directly.
func (t *Tracker) Watch(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errJobIDRequired
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTrackerClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrSubmitInFlight
	}
	t.started = true
	t.state = StatePolling
	t.mu.Unlock()

	go t.run(ctx, nil, jobID)
	return nil
}

// Close stops tracking. No further network calls are made once it
// returns; the backend job itself is not told to cancel.
func (t *Tracker) Close() {
	t.mu.Lock()
	started := t.started
	t.closed = true
	t.mu.Unlock()

	t.closeOnce.Do(func() { close(t.done) })
	if !started {
		t.finishStream()
	}
}

func (t *Tracker) run(ctx context.Context, req *model.ReportRequest, jobID string) {
	defer t.finishStream()
	start := time.Now()

	if req != nil {
		t.emit(Snapshot{State: StateSubmitting, StageLabel: StageLabel(0)}, false)

		res, err := t.source.SubmitReport(ctx, req)
		if err != nil {
			t.fail(jobID, FailureMessage(err), start)
			return
		}
		jobID = res.JobID

		// Backend may return synchronously with the report embedded
		if res.Status == model.JobStatusCompleted && res.Report != nil {
			t.complete(jobID, res.Report, start)
			return
		}
		t.setState(StatePolling)
	}

	t.poll(ctx, jobID, start)
}

func (t *Tracker) poll(ctx context.Context, jobID string, start time.Time) {
	pollTicker := time.NewTicker(t.opts.PollInterval)
	defer pollTicker.Stop()
	tick := time.NewTicker(t.opts.TickInterval)
	defer tick.Stop()

	var (
		confirmed   int // last backend-confirmed stage, monotonic
		displayed   int // stage shown to consumers, never regresses
		progress    float64
		status      = model.JobStatusQueued
		lastAdvance = start
	)

	emitProgress := func() {
		t.emit(Snapshot{
			State:      StatePolling,
			JobID:      jobID,
			Status:     status,
			Progress:   progress,
			Stage:      displayed,
			StageLabel: StageLabel(displayed),
			Elapsed:    time.Since(start),
		}, false)
	}

	emitProgress()

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.done:
			return

		case <-tick.C:
			// Between polls the stage may advance on elapsed time alone,
			// but only one stage ahead of what the backend confirmed and
			// never into the final stages.
			if time.Since(lastAdvance) >= t.opts.StageEstimate &&
				displayed <= confirmed && displayed < StageCount-2 {
				displayed++
				lastAdvance = time.Now()
			}
			emitProgress()

		case <-pollTicker.C:
			res, err := t.source.JobStatus(ctx, jobID)
			if err != nil {
				if isFatalPollError(err) {
					t.fail(jobID, FailureMessage(err), start)
					return
				}
				// Transient network failure: swallowed, polling continues.
				continue
			}

			status = res.Status
			// Backend progress is authoritative but the displayed stage
			// and progress never move backwards.
			if s := StageForProgress(res.Progress); s > confirmed {
				confirmed = s
			}
			if confirmed > displayed {
				displayed = confirmed
			}
			if res.Progress > progress {
				progress = res.Progress
			}
			lastAdvance = time.Now()

			switch {
			case res.Status == model.JobStatusCompleted && res.Report != nil:
				t.complete(jobID, res.Report, start)
				return
			case res.Status == model.JobStatusCompleted:
				t.fail(jobID, FallbackFailureMessage, start)
				return
			case res.Status == model.JobStatusFailed:
				detail := res.Error
				if detail == "" {
					detail = FallbackFailureMessage
				}
				t.fail(jobID, detail, start)
				return
			default:
				emitProgress()
			}
		}
	}
}

func (t *Tracker) complete(jobID string, report *model.ReportResult, start time.Time) {
	t.setState(StateCompleted)
	t.emit(Snapshot{
		State:      StateCompleted,
		JobID:      jobID,
		Status:     model.JobStatusCompleted,
		Progress:   1.0,
		Stage:      StageCount - 1,
		StageLabel: StageLabel(StageCount - 1),
		Elapsed:    time.Since(start),
		Report:     report,
	}, true)
}

func (t *Tracker) fail(jobID, detail string, start time.Time) {
	t.setState(StateFailed)
	t.emit(Snapshot{
		State:   StateFailed,
		JobID:   jobID,
		Status:  model.JobStatusFailed,
		Elapsed: time.Since(start),
		Detail:  detail,
	}, true)
}

func (t *Tracker) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// emit delivers a snapshot. Intermediate snapshots are dropped when the
// consumer lags; the terminal snapshot waits until consumed or the
// tracker is closed.
func (t *Tracker) emit(s Snapshot, terminal bool) {
	if terminal {
		select {
		case t.snapshots <- s:
		case <-t.done:
		}
		return
	}
	select {
	case t.snapshots <- s:
	default:
	}
}

func (t *Tracker) finishStream() {
	t.snapOnce.Do(func() { close(t.snapshots) })
}
