package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"daily-routine-service/internal/models"
	"daily-routine-service/internal/routine-manager/catalog"
	"daily-routine-service/internal/routine-manager/clock"
	"daily-routine-service/internal/routine-manager/events"
	"daily-routine-service/internal/routine-manager/scheduler"
	"daily-routine-service/internal/routine-manager/store"
)

// Navigation targets handed to NavigateFunc.
const (
	PathPrompt      = "/prompt"  // show the active task
	PathProgressMap = "/roadmap" // show the progress map
)

// NavigateFunc receives a path whenever the active task identity changes. It runs on the
// service goroutine and must not call back into the service.
type NavigateFunc func(path string)

// Ticker drives the minute-boundary re-evaluation.
type Ticker interface {
	Start(onTick func()) error
	Pause()
	Resume() error
	Stop()
}

// EventPublisher receives completion events. It must not block.
type EventPublisher interface {
	Publish(e events.CompletionEvent)
}

// Snapshot is an immutable view of the controller state.
type Snapshot struct {
	Date          string            `json:"date"`
	CurrentTime   models.TimeOfDay  `json:"current_time"`
	ActiveTaskID  string            `json:"active_task_id,omitempty"`
	Statuses      models.StatusSet  `json:"statuses"`
	TestMode      bool              `json:"test_mode"`
	SimulatedTime *models.TimeOfDay `json:"simulated_time,omitempty"`
	ManualTaskID  string            `json:"manual_task_id,omitempty"`
	LastPath      string            `json:"last_path,omitempty"`
	Navigations   int               `json:"navigations"`
	Warning       string            `json:"warning,omitempty"`
	NextChange    *models.TimeOfDay `json:"next_change,omitempty"`
}

type Options struct {
	Catalog  *catalog.Catalog
	Store    store.StatusStore
	Clock    *clock.Source
	Ticker   Ticker         // optional
	Events   EventPublisher // optional
	Navigate NavigateFunc   // optional
}

type request struct {
	ctx   context.Context
	fn    func(ctx context.Context) error
	reply chan error
}

// RoutineService is the task context controller. A single goroutine applies every mutation
// and tick in order; readers use the published Snapshot.
type RoutineService struct {
	catalog  *catalog.Catalog
	tasks    []models.TaskDefinition
	store    store.StatusStore
	clock    *clock.Source
	ticker   Ticker
	events   EventPublisher
	navigate NavigateFunc

	requests chan request
	ticks    chan struct{}
	closing  chan struct{}
	done     chan struct{}

	lifecycle sync.Mutex
	started   bool
	closed    bool
	snap      atomic.Pointer[Snapshot]

	// owned by the service goroutine after Start
	baseCtx    context.Context
	cancelBase context.CancelFunc
	st         controllerState
}

type controllerState struct {
	date       string
	records    models.StatusSet
	active     string
	testMode   bool
	simulated  *models.TimeOfDay
	manual     string
	dirty      bool // in-memory records not yet saved
	loadFailed bool // records are a fallback, the stored set was never read
	loadErr    error
	warning    string
	lastPath   string
	navs       int
}

func NewRoutineService(opts Options) *RoutineService {
	if opts.Clock == nil {
		opts.Clock = clock.New(nil, nil)
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &RoutineService{
		catalog:    opts.Catalog,
		tasks:      opts.Catalog.Tasks(),
		store:      opts.Store,
		clock:      opts.Clock,
		ticker:     opts.Ticker,
		events:     opts.Events,
		navigate:   opts.Navigate,
		requests:   make(chan request),
		ticks:      make(chan struct{}, 1),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Start loads the current date, computes the initial state and starts the service goroutine
// and the ticker. A store failure is not fatal: the day starts from an in-memory all-pending
// set and the load is retried on the next tick.
func (s *RoutineService) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return models.ErrClosed
	}
	if s.started {
		return nil
	}

	if s.ticker != nil {
		if err := s.ticker.Start(s.Tick); err != nil {
			return fmt.Errorf("failed to start routine ticker: %w", err)
		}
	}

	date, _ := s.clock.Today()
	s.switchDay(ctx, date)
	s.recompute()
	s.started = true
	go s.loop()
	hlog.Infof("RoutineService started for %s with %d tasks.", date, len(s.tasks))
	return nil
}

// Close stops the ticker and the service goroutine. No navigation or event fires afterwards.
func (s *RoutineService) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.closing)
	if s.ticker != nil && s.started {
		s.ticker.Stop()
	}
	if s.started {
		<-s.done
	}
	s.cancelBase()
	hlog.Info("RoutineService closed.")
}

func (s *RoutineService) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.closing:
			s.flush()
			return
		case req := <-s.requests:
			req.reply <- req.fn(req.ctx)
		case <-s.ticks:
			s.handleTick()
		}
	}
}

// handleTick drops wall-clock ticks while test mode is on.
func (s *RoutineService) handleTick() {
	if s.st.testMode {
		return
	}
	s.reconcile(s.baseCtx)
}

// do runs fn on the service goroutine and waits for its result.
func (s *RoutineService) do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.lifecycle.Lock()
	started, closed := s.started, s.closed
	s.lifecycle.Unlock()
	if closed {
		return models.ErrClosed
	}
	if !started {
		return models.ErrNotStarted
	}

	req := request{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.closing:
		return models.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.reply
}

// Tick asks for a re-evaluation against the wall clock. It never blocks; ticks coalesce.
func (s *RoutineService) Tick() {
	select {
	case s.ticks <- struct{}{}:
	default:
	}
}

func (s *RoutineService) CompleteTask(ctx context.Context, taskID string) error {
	return s.do(ctx, func(ctx context.Context) error { return s.resolve(ctx, taskID, models.StatusChecked) })
}

func (s *RoutineService) SkipTask(ctx context.Context, taskID string) error {
	return s.do(ctx, func(ctx context.Context) error { return s.resolve(ctx, taskID, models.StatusUnchecked) })
}

// EnableTestMode switches the simulated clock on or off. Turning it off clears the simulated
// time and the manual trigger and resumes the wall-clock ticker.
func (s *RoutineService) EnableTestMode(ctx context.Context, on bool) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.st.testMode == on {
			return nil
		}
		s.st.testMode = on
		if on {
			if s.ticker != nil {
				s.ticker.Pause()
			}
			hlog.Info("RoutineService: test mode enabled.")
			s.recompute()
			return nil
		}
		s.st.simulated = nil
		s.st.manual = ""
		var err error
		if s.ticker != nil {
			err = s.ticker.Resume()
		}
		hlog.Info("RoutineService: test mode disabled.")
		s.reconcile(ctx)
		return err
	})
}

func (s *RoutineService) SetSimulatedTime(ctx context.Context, hhmm string) error {
	return s.do(ctx, func(ctx context.Context) error {
		if !s.st.testMode {
			return models.ErrTestModeDisabled
		}
		t, err := models.ParseTimeOfDay(hhmm)
		if err != nil {
			return err
		}
		s.st.simulated = &t
		s.recompute()
		return nil
	})
}

// TriggerTask forces a pending task active until it is completed or skipped.
func (s *RoutineService) TriggerTask(ctx context.Context, taskID string) error {
	return s.do(ctx, func(ctx context.Context) error {
		if !s.st.testMode {
			return models.ErrTestModeDisabled
		}
		if !s.catalog.Contains(taskID) {
			return &models.UnknownTaskError{TaskID: taskID}
		}
		if st, _ := s.st.records.StatusOf(taskID); st.Terminal() {
			return models.ErrTaskResolved
		}
		s.st.manual = taskID
		s.recompute()
		return nil
	})
}

func (s *RoutineService) resolve(ctx context.Context, taskID string, status models.Status) error {
	def, ok := s.catalog.Lookup(taskID)
	if !ok {
		return &models.UnknownTaskError{TaskID: taskID}
	}
	s.rollover(ctx)
	if s.st.loadFailed {
		s.switchDay(ctx, s.st.date)
	}
	defer s.recompute()

	current, _ := s.st.records.StatusOf(taskID)
	if current == status {
		return nil
	}
	if current.Terminal() {
		return models.ErrTaskResolved
	}

	s.st.records = store.SetStatus(s.st.date, s.st.records, taskID, status)
	if s.st.manual == taskID {
		s.st.manual = ""
	}
	if s.events != nil {
		s.events.Publish(events.NewCompletionEvent(def, status, s.st.date, s.clock.Now()))
	}
	hlog.Infof("RoutineService: task %s marked %s for %s.", taskID, status, s.st.date)

	s.st.dirty = true
	return s.save(ctx)
}

// reconcile brings the state up to date with the wall clock and retries pending store work.
func (s *RoutineService) reconcile(ctx context.Context) {
	if !s.rollover(ctx) {
		switch {
		case s.st.dirty:
			_ = s.save(ctx)
		case s.st.loadFailed:
			s.switchDay(ctx, s.st.date)
		}
	}
	s.recompute()
}

// rollover switches to the wall-clock date when it moved. It reports whether it did.
func (s *RoutineService) rollover(ctx context.Context) bool {
	date, _ := s.clock.Today()
	if date == s.st.date {
		return false
	}
	if s.st.dirty {
		_ = s.save(ctx)
	}
	hlog.Infof("RoutineService: date changed from %s to %s.", s.st.date, date)
	s.switchDay(ctx, date)
	return true
}

// switchDay loads date. On failure the day continues from memory and loadFailed is set. A
// successful reload of the current day keeps terminal decisions made while it was unreadable.
func (s *RoutineService) switchDay(ctx context.Context, date string) {
	if s.st.date != date {
		s.st.records = nil
		s.st.manual = ""
		s.st.dirty = false
	}
	s.st.date = date

	records, err := s.store.Load(ctx, date)
	if err != nil {
		hlog.Warnf("RoutineService: %v; continuing with an in-memory day.", err)
		if s.st.records == nil {
			s.st.records = models.NewDay(date, s.tasks)
		}
		s.st.loadFailed = true
		s.st.loadErr = err
		s.st.warning = err.Error()
		return
	}
	if s.st.loadFailed && s.st.records != nil {
		var merged bool
		records, merged = mergeDecisions(records, s.st.records)
		if merged {
			s.st.dirty = true
		}
	}
	s.st.records = records
	s.st.loadFailed = false
	s.st.loadErr = nil
	s.st.warning = ""
}

// mergeDecisions returns stored with the terminal statuses of local applied to its pending
// records. Terminal stored records win. It reports whether anything was taken from local.
func mergeDecisions(stored, local models.StatusSet) (models.StatusSet, bool) {
	out := stored.Clone()
	merged := false
	for i := range out {
		if out[i].Status.Terminal() {
			continue
		}
		if st, ok := local.StatusOf(out[i].TaskID); ok && st.Terminal() {
			out[i].Status = st
			merged = true
		}
	}
	return out, merged
}

// save writes the current day. A day whose stored set was never read is not written, so
// decisions already in the store are not replaced by the in-memory fallback.
func (s *RoutineService) save(ctx context.Context) error {
	if s.st.loadFailed {
		s.switchDay(ctx, s.st.date)
		if s.st.loadFailed {
			return &models.PersistenceError{Op: "save", Date: s.st.date, Err: fmt.Errorf("stored day not readable: %w", s.st.loadErr)}
		}
	}
	if err := s.store.Save(ctx, s.st.date, s.st.records); err != nil {
		hlog.Warnf("RoutineService: %v; will retry.", err)
		s.st.warning = err.Error()
		var perr *models.PersistenceError
		if !errors.As(err, &perr) {
			err = &models.PersistenceError{Op: "save", Date: s.st.date, Err: err}
		}
		return err
	}
	s.st.dirty = false
	s.st.loadFailed = false
	s.st.warning = ""
	return nil
}

func (s *RoutineService) flush() {
	if !s.st.dirty {
		return
	}
	if err := s.save(s.baseCtx); err != nil {
		hlog.Errorf("RoutineService: final save failed: %v", err)
	}
}

// recompute derives the active task, fires navigation on identity change and publishes
// a new snapshot.
func (s *RoutineService) recompute() {
	var sim *models.TimeOfDay
	if s.st.testMode {
		sim = s.st.simulated
	}
	date, now := s.clock.Current(sim)
	if date != s.st.date {
		// rollover is handled by reconcile; until then the loaded day stays current
		date = s.st.date
	}

	if s.st.manual != "" {
		if st, _ := s.st.records.StatusOf(s.st.manual); st != models.StatusPending {
			s.st.manual = ""
		}
	}
	active := s.st.manual
	if active == "" {
		active, _ = scheduler.ActiveTask(s.tasks, s.st.records, now)
	}

	if active != s.st.active {
		from := s.st.active
		s.st.active = active
		path := PathProgressMap
		if active != "" {
			path = PathPrompt
		}
		s.st.lastPath = path
		s.st.navs++
		hlog.Infof("RoutineService: active task %q -> %q, navigating to %s.", from, active, path)
		if s.navigate != nil {
			s.navigate(path)
		}
	}

	snap := &Snapshot{
		Date:         date,
		CurrentTime:  now,
		ActiveTaskID: active,
		Statuses:     s.st.records.Clone(),
		TestMode:     s.st.testMode,
		ManualTaskID: s.st.manual,
		LastPath:     s.st.lastPath,
		Navigations:  s.st.navs,
		Warning:      s.st.warning,
	}
	if sim != nil {
		t := *sim
		snap.SimulatedTime = &t
	}
	if next, ok := scheduler.NextBoundary(s.tasks, now); ok {
		snap.NextChange = &next
	}
	s.snap.Store(snap)
}

// Snapshot returns the last published state. Before Start it is the zero Snapshot.
func (s *RoutineService) Snapshot() Snapshot {
	p := s.snap.Load()
	if p == nil {
		return Snapshot{}
	}
	out := *p
	out.Statuses = p.Statuses.Clone()
	return out
}

func (s *RoutineService) ActiveTask() (models.TaskDefinition, bool) {
	p := s.snap.Load()
	if p == nil || p.ActiveTaskID == "" {
		return models.TaskDefinition{}, false
	}
	return s.catalog.Lookup(p.ActiveTaskID)
}

// AllStatuses returns every catalog task with its status for the current date, in catalog
// order. It is empty before Start.
func (s *RoutineService) AllStatuses() []models.TaskStatus {
	p := s.snap.Load()
	if p == nil {
		return nil
	}
	out := make([]models.TaskStatus, 0, len(s.tasks))
	for _, d := range s.tasks {
		st, ok := p.Statuses.StatusOf(d.ID)
		if !ok {
			st = models.StatusPending
		}
		out = append(out, models.TaskStatus{Task: d, Status: st})
	}
	return out
}

// Prune deletes stored days older than keepDays before today. Today is never pruned.
func (s *RoutineService) Prune(ctx context.Context, keepDays int) (int64, error) {
	if keepDays < 1 {
		keepDays = 1
	}
	before := s.clock.DateBefore(keepDays)
	n, err := s.store.Prune(ctx, before)
	if err != nil {
		return 0, err
	}
	hlog.Infof("RoutineService: pruned %d stored days before %s.", n, before)
	return n, nil
}
