package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Start after Close
var ErrManagerClosed = errors.New("run manager is closed")

// RunState is the lifecycle state of an import run
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
)

// Run is one background import. It records every progress event so that
// late subscribers can replay the stream from the start.
type Run struct {
	ID        string
	Game      domain.Game
	Rows      int
	CreatedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	events   []domain.ProgressEvent
	changed  chan struct{}
	report   *domain.ImportReport
	finished time.Time
}

func newRun(game domain.Game, rows int, cancel context.CancelFunc) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Game:      game,
		Rows:      rows,
		CreatedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		changed:   make(chan struct{}),
	}
}

// OnProgress records an event and wakes waiting subscribers
func (r *Run) OnProgress(e domain.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	close(r.changed)
	r.changed = make(chan struct{})
}

// EventsSince returns the events after the first n, a channel that is
// closed when more arrive, and whether the run has finished
func (r *Run) EventsSince(n int) ([]domain.ProgressEvent, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	var out []domain.ProgressEvent
	if n < len(r.events) {
		out = append(out, r.events[n:]...)
	}
	return out, r.changed, r.report != nil
}

// Done is closed once the run has a report
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done
func (r *Run) Wait(ctx context.Context) (*domain.ImportReport, error) {
	select {
	case <-r.done:
		return r.Report(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Report returns the final report, or nil while running
func (r *Run) Report() *domain.ImportReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}

// State reports the lifecycle state
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.report == nil:
		return RunRunning
	case r.report.Summary.Cancelled:
		return RunCancelled
	default:
		return RunCompleted
	}
}

// Cancel stops the run cooperatively; rows already processed are kept
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) finish(report *domain.ImportReport) {
	r.mu.Lock()
	r.report = report
	r.finished = time.Now()
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
	close(r.done)
}

func (r *Run) finishedBefore(t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report != nil && r.finished.Before(t)
}

// RunManagerConfig holds configuration for the run manager
type RunManagerConfig struct {
	// TTL is how long finished runs are kept
	TTL time.Duration
	// CleanupInterval is how often stale runs are evicted
	CleanupInterval time.Duration
}

// RunManager executes imports in the background and tracks them by id.
// All runs share the import service and therefore its rate gate.
type RunManager struct {
	service *ImportService
	logger  *zap.Logger
	ttl     time.Duration

	mu     sync.RWMutex
	runs   map[string]*Run
	closed bool

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRunManager creates a manager and starts its cleanup loop
func NewRunManager(service *ImportService, logger *zap.Logger, config RunManagerConfig) *RunManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	m := &RunManager{
		service: service,
		logger:  logger.Named("runs"),
		ttl:     ttl,
		runs:    make(map[string]*Run),
		stop:    make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop(interval)

	return m
}

// Start parses text and launches the import in the background.
// Format errors are returned immediately and no run is created.
func (m *RunManager) Start(text string, game domain.Game) (*Run, error) {
	cards, err := m.service.Parser().Parse(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(game, len(cards), cancel)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, ErrManagerClosed
	}
	m.runs[run.ID] = run
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("import run started",
		zap.String("run_id", run.ID),
		zap.String("game", string(game)),
		zap.Int("rows", len(cards)))

	go func() {
		defer m.wg.Done()
		defer cancel()
		report, err := m.service.Process(ctx, cards, game, run)
		if err != nil {
			m.logger.Info("import run stopped early", zap.String("run_id", run.ID), zap.Error(err))
		}
		run.finish(report)
	}()

	return run, nil
}

// Get returns a run by id
func (m *RunManager) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

// Cancel cancels a run by id
func (m *RunManager) Cancel(id string) error {
	run, err := m.Get(id)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// CleanupStale removes runs that finished more than maxAge ago
func (m *RunManager) CleanupStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, run := range m.runs {
		if run.finishedBefore(cutoff) {
			delete(m.runs, id)
			removed++
		}
	}
	return removed
}

func (m *RunManager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanupStale(m.ttl); n > 0 {
				m.logger.Debug("evicted stale runs", zap.Int("count", n))
			}
		case <-m.stop:
			return
		}
	}
}

// Close cancels every active run and waits for all goroutines to exit
func (m *RunManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		m.closed = true
		for _, run := range m.runs {
			run.Cancel()
		}
		m.mu.Unlock()
	})
	m.wg.Wait()
}
