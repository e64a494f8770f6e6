// Package screen holds the displayed earthquake list. Each refresh replaces
// the whole list with the result of a new load, and a refresh started while
// an earlier one is in flight discards the earlier result.
package screen

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/present"
	"github.com/jonboulle/clockwork"
)

// ErrNotLoaded is returned by CheckReadiness until the first load is delivered.
var ErrNotLoaded = errors.New("no feed load delivered yet")

// Publisher forwards a freshly loaded, non-empty list downstream.
type Publisher interface {
	Publish(ctx context.Context, fetchedAt time.Time, quakes []domain.Earthquake) error
}

// Snapshot is one complete displayed list.
type Snapshot struct {
	LoadID      string
	FetchedAt   time.Time
	Outcome     loader.Outcome
	Earthquakes []domain.Earthquake
	Rows        []present.Row
}

// Empty reports whether the list has no rows.
func (s Snapshot) Empty() bool { return len(s.Rows) == 0 }

// Option configures a Screen.
type Option func(*Screen)

// WithPublisher forwards every non-empty list to p.
func WithPublisher(p Publisher) Option {
	return func(s *Screen) { s.publisher = p }
}

// WithClock replaces the ticker source used by Run.
func WithClock(c clockwork.Clock) Option {
	return func(s *Screen) { s.clock = c }
}

// WithRefreshInterval sets the period of Run's automatic refresh. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Screen) { s.interval = d }
}

// Screen owns the current list and the in-flight load.
type Screen struct {
	loader    *loader.Loader
	url       string
	location  *time.Location
	publisher Publisher
	clock     clockwork.Clock
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// Publishes run on their own context so Close can drain them.
	pubCtx    context.Context
	pubCancel context.CancelFunc
	pubWG     sync.WaitGroup

	// refreshMu guards task replacement. The deliver callback never takes it,
	// so disposing a task while holding it cannot deadlock.
	refreshMu sync.Mutex
	task      *loader.Task
	closed    bool

	mu       sync.RWMutex
	current  Snapshot
	ready    bool
	subs     map[chan Snapshot]struct{}
	subsDone bool
}

// New creates a Screen that loads url and formats dates in loc.
func New(l *loader.Loader, url string, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Screen {
	ctx, cancel := context.WithCancel(context.Background())
	pubCtx, pubCancel := context.WithCancel(context.Background())
	s := &Screen{
		loader:    l,
		url:       url,
		location:  loc,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		pubCtx:    pubCtx,
		pubCancel: pubCancel,
		current:   Snapshot{Rows: []present.Row{}},
		subs:      make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh disposes any in-flight load and starts a new one. It returns
// without waiting for the load.
func (s *Screen) Refresh() {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.closed {
		return
	}
	if s.task != nil {
		s.task.Dispose()
	}
	s.task = s.loader.Start(s.ctx, s.url, s.deliver)
}

// Run refreshes immediately and then on every tick of the refresh interval
// until ctx is cancelled.
func (s *Screen) Run(ctx context.Context) error {
	s.logger.Info("screen started", "url", s.url, "refresh_interval", s.interval)
	s.Refresh()

	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Refresh()
		}
	}
}

// Close disposes the in-flight load, lets pending publishes finish and closes
// every subscriber channel. Later refreshes are ignored.
func (s *Screen) Close() {
	s.refreshMu.Lock()
	s.closed = true
	if s.task != nil {
		s.task.Dispose()
	}
	s.refreshMu.Unlock()

	s.cancel()
	s.pubWG.Wait()
	s.pubCancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.subsDone = true
	s.metrics.Subscribers.Set(0)
}

// Snapshot returns the current list and whether any load has been delivered.
func (s *Screen) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.ready
}

// CheckReadiness returns nil once the first load has been delivered.
func (s *Screen) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return ErrNotLoaded
	}
	return nil
}

// Subscribe returns a channel receiving every new snapshot, starting with
// the current one if a load has been delivered. A slow subscriber only sees
// the latest snapshot. Call the returned func to unsubscribe.
func (s *Screen) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subsDone {
		close(ch)
		return ch, func() {}
	}
	if s.ready {
		ch <- s.current
	}
	s.subs[ch] = struct{}{}
	s.metrics.Subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
				s.metrics.Subscribers.Dec()
			}
		})
	}
}

func (s *Screen) deliver(res loader.Result) {
	snap := Snapshot{
		LoadID:      res.LoadID,
		FetchedAt:   res.FetchedAt,
		Outcome:     res.Outcome,
		Earthquakes: res.Earthquakes,
		Rows:        present.Rows(res.Earthquakes, s.location),
	}

	s.mu.Lock()
	s.current = snap
	s.ready = true
	for ch := range s.subs {
		offer(ch, snap)
	}
	s.mu.Unlock()

	s.metrics.RecordsDisplayed.Set(float64(len(snap.Rows)))
	s.logger.Info("list replaced", "load_id", snap.LoadID, "outcome", snap.Outcome, "count", len(snap.Rows))

	if s.publisher != nil && !snap.Empty() {
		s.pubWG.Add(1)
		go s.publish(snap)
	}
}

func (s *Screen) publish(snap Snapshot) {
	defer s.pubWG.Done()
	if err := s.publisher.Publish(s.pubCtx, snap.FetchedAt, snap.Earthquakes); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Error("publish failed", "load_id", snap.LoadID, "error", err)
		return
	}
	s.metrics.RecordsPublished.Add(float64(len(snap.Earthquakes)))
}

// offer replaces any unread snapshot in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
