// Package download runs image fetches with a fixed number of concurrent
// slots. Requests beyond the limit wait in a pending list and the most
// recently scheduled one is admitted first.
package download

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joestump/bookmarks/internal/logger"
	"github.com/joestump/bookmarks/internal/metrics"
)

// ErrClosed is reported to jobs scheduled after Close.
var ErrClosed = errors.New("scheduler closed")

// Fetcher retrieves the image bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// Result is delivered exactly once to the callback of every job that is not
// cancelled. Exactly one of Data and Err is set.
type Result struct {
	URL  string
	Data []byte
	Err  error
}

// JobError wraps a fetch failure with the URL it belongs to.
type JobError struct {
	URL string
	Err error
}

func (e *JobError) Error() string { return fmt.Sprintf("download %s: %v", e.URL, e.Err) }

func (e *JobError) Unwrap() error { return e.Err }

// Scheduler admits at most limit fetches at a time.
type Scheduler struct {
	limit   int
	fetcher Fetcher
	deliver func(func())
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending []*Job
	active  int
	closed  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelivery sets the function that runs completion callbacks. The default
// starts a new goroutine per callback; a UI or test can pass its own
// executor to run callbacks on a specific goroutine.
func WithDelivery(deliver func(func())) Option {
	return func(s *Scheduler) { s.deliver = deliver }
}

// WithLogger sets the scheduler's logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) { s.log = log.Named("download") }
}

// New returns a scheduler running at most limit fetches concurrently. A limit
// below one is treated as one.
func New(limit int, fetcher Fetcher, opts ...Option) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		limit:   limit,
		fetcher: fetcher,
		deliver: func(fn func()) { go fn() },
		log:     logger.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limit returns the number of concurrent slots.
func (s *Scheduler) Limit() int { return s.limit }

// Schedule queues a fetch of url. done is called once with the outcome
// unless the job is cancelled while still pending.
func (s *Scheduler) Schedule(url string, done func(Result)) *Job {
	j := &Job{url: url, done: done, s: s, finished: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		j.finishLocked(StateFailed)
		s.mu.Unlock()
		s.complete(j, Result{URL: url, Err: &JobError{URL: url, Err: ErrClosed}})
		return j
	}
	s.pending = append(s.pending, j)
	s.admitLocked()
	s.mu.Unlock()
	return j
}

// admitLocked promotes pending jobs, newest first, while slots are free.
// Callers must hold s.mu.
func (s *Scheduler) admitLocked() {
	for !s.closed && s.active < s.limit && len(s.pending) > 0 {
		last := len(s.pending) - 1
		j := s.pending[last]
		s.pending[last] = nil
		s.pending = s.pending[:last]

		j.state = StateActive
		s.active++
		s.wg.Add(1)
		go s.run(j)
	}
	metrics.DownloadsActive.Set(float64(s.active))
	metrics.DownloadsPending.Set(float64(len(s.pending)))
}

func (s *Scheduler) run(j *Job) {
	defer s.wg.Done()

	data, err := s.fetch(j.url)
	res := Result{URL: j.url}
	state := StateSucceeded
	if err != nil {
		res.Err = &JobError{URL: j.url, Err: err}
		state = StateFailed
		s.log.Debug("fetch failed", logger.String("url", j.url), logger.Error(err))
	} else {
		res.Data = data
	}

	s.mu.Lock()
	s.active--
	j.finishLocked(state)
	s.mu.Unlock()

	s.complete(j, res)

	s.mu.Lock()
	s.admitLocked()
	s.mu.Unlock()
}

// fetch calls the fetcher, turning a panic into an error so one bad job
// cannot take down the others.
func (s *Scheduler) fetch(url string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	return s.fetcher.Fetch(s.ctx, url)
}

func (s *Scheduler) complete(j *Job, res Result) {
	if res.Err != nil {
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.DownloadsTotal.WithLabelValues("succeeded").Inc()
	}
	if j.done == nil {
		return
	}
	done := j.done
	s.deliver(func() { done(res) })
}

// cancelJob removes j from the pending list. It reports false when j has
// already been admitted, finished or cancelled.
func (s *Scheduler) cancelJob(j *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.state != StatePending {
		return false
	}
	for i, p := range s.pending {
		if p == j {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	j.finishLocked(StateCancelled)
	metrics.DownloadsTotal.WithLabelValues("cancelled").Inc()
	metrics.DownloadsPending.Set(float64(len(s.pending)))
	return true
}

// Stats returns the number of pending and active jobs.
func (s *Scheduler) Stats() (pending, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), s.active
}

// Close stops admitting jobs, drops every pending job without calling its
// callback (the job's Done channel is closed), and waits for active fetches to finish. If ctx ends first the
// active fetches are cancelled and ctx's error is returned.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	dropped := s.pending
	s.pending = nil
	for _, j := range dropped {
		j.finishLocked(StateCancelled)
	}
	metrics.DownloadsPending.Set(0)
	s.mu.Unlock()

	if len(dropped) > 0 {
		s.log.Info("dropped pending downloads", logger.Int("count", len(dropped)))
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-waited
		return ctx.Err()
	}
}
