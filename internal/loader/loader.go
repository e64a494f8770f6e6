// Package loader runs feed fetch and parse off the caller's goroutine and
// delivers one complete result per load.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/google/uuid"
)

// FeedSource returns the raw feed document at url.
// An empty url yields "" and no error.
type FeedSource interface {
	Get(ctx context.Context, url string) (string, error)
}

// Outcome classifies how a load ended. Every outcome other than OutcomeOK
// delivers an empty list.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeEmpty          Outcome = "empty"
	OutcomeNetworkFailure Outcome = "network_failure"
	OutcomeParseFailure   Outcome = "parse_failure"
)

// Result is the complete outcome of one load.
type Result struct {
	LoadID      string
	URL         string
	Earthquakes []domain.Earthquake
	Outcome     Outcome
	FetchedAt   time.Time
}

// Loader combines a FeedSource with domain.ParseFeed.
type Loader struct {
	source  FeedSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Loader.
func New(source FeedSource, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{source: source, logger: logger, metrics: metrics}
}

// Load fetches and parses url synchronously. Failures never escape: they are
// logged and reported as an empty result with the matching Outcome.
func (l *Loader) Load(ctx context.Context, url string) Result {
	start := time.Now()
	res := Result{LoadID: uuid.NewString(), URL: url}
	logger := l.logger.With("load_id", res.LoadID, "url", url)

	res.Outcome, res.Earthquakes = l.fetchAndParse(ctx, url, logger)
	res.FetchedAt = domain.Now()

	l.metrics.Loads.WithLabelValues(string(res.Outcome)).Inc()
	l.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	l.metrics.RecordsLoaded.Add(float64(len(res.Earthquakes)))

	logger.Info("load finished", "outcome", res.Outcome, "count", len(res.Earthquakes))
	return res
}

func (l *Loader) fetchAndParse(ctx context.Context, url string, logger *slog.Logger) (Outcome, []domain.Earthquake) {
	if url == "" {
		logger.Debug("no feed url, nothing to load")
		return OutcomeEmpty, nil
	}

	body, err := l.source.Get(ctx, url)
	if err != nil {
		logger.Error("problem making the feed request", "error", err)
		return OutcomeNetworkFailure, nil
	}

	quakes, err := domain.ParseFeed(body)
	switch {
	case errors.Is(err, domain.ErrEmptyFeed):
		logger.Warn("feed returned an empty body")
		return OutcomeEmpty, nil
	case err != nil:
		logger.Error("problem parsing the feed", "error", err)
		return OutcomeParseFailure, nil
	case len(quakes) == 0:
		return OutcomeEmpty, quakes
	}
	return OutcomeOK, quakes
}

// Start runs Load on a new goroutine and calls deliver exactly once with the
// result, unless the task is disposed or ctx is cancelled first, in which
// case the result is discarded.
func (l *Loader) Start(ctx context.Context, url string, deliver func(Result)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		res := l.Load(ctx, url)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.disposed || ctx.Err() != nil {
			l.logger.Debug("load result discarded", "load_id", res.LoadID)
			return
		}
		t.delivered = true
		deliver(res)
	}()

	return t
}

// Task is a running one-shot load.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	disposed  bool
	delivered bool
}

// Dispose cancels the load. Once Dispose returns, the deliver callback will
// not run; if it was already running, Dispose waits for it to return.
// Dispose is safe to call more than once.
func (t *Task) Dispose() {
	t.mu.Lock()
	t.disposed = true
	t.mu.Unlock()
	t.cancel()
}

// Done is closed when the task has delivered or discarded its result.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Delivered reports whether the result reached the callback.
func (t *Task) Delivered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delivered
}
