// Package tasks runs best-effort follow-up work (audit entries, orphan
// image cleanup, history records) after a request's primary write has
// succeeded. Failures are logged and counted, never returned to callers.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher accepts tasks without blocking the caller.
type Dispatcher interface {
	Enqueue(Task) bool
}

// Outcome labels for the task counter.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
	OutcomeDropped = "dropped"
)

// Options configures a Queue.
type Options struct {
	Workers int
	Buffer  int
	Timeout time.Duration
	Logger  logrus.FieldLogger
	Counter *prometheus.CounterVec
}

// Queue is a bounded channel drained by a fixed set of workers.
type Queue struct {
	ch      chan Task
	timeout time.Duration
	log     logrus.FieldLogger
	counter *prometheus.CounterVec

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Dispatcher = (*Queue)(nil)

// NewCounter builds the outcome counter; register it with the metrics registry.
func NewCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_background_tasks_total",
		Help: "Background tasks by name and outcome.",
	}, []string{"task", "outcome"})
}

// New starts the workers immediately.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = l
	}
	q := &Queue{
		ch:      make(chan Task, opts.Buffer),
		timeout: opts.Timeout,
		log:     opts.Logger,
		counter: opts.Counter,
	}
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue hands t to the workers. A full or closed queue drops the task.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(t, "queue closed")
		return false
	}
	select {
	case q.ch <- t:
		return true
	default:
		q.drop(t, "queue full")
		return false
	}
}

func (q *Queue) drop(t Task, reason string) {
	q.log.WithField("task", t.Name).Warnf("background task dropped: %s", reason)
	q.count(t.Name, OutcomeDropped)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.ch {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	start := time.Now()
	err := safeRun(ctx, t)
	entry := q.log.WithFields(logrus.Fields{"task": t.Name, "duration": time.Since(start).String()})
	switch {
	case err == nil:
		q.count(t.Name, OutcomeOK)
		entry.Debug("background task done")
	case isPanic(err):
		q.count(t.Name, OutcomePanic)
		entry.WithError(err).Error("background task panicked")
	default:
		q.count(t.Name, OutcomeError)
		entry.WithError(err).Warn("background task failed")
	}
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

func isPanic(err error) bool {
	_, ok := err.(panicError)
	return ok
}

func safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}

func (q *Queue) count(name, outcome string) {
	if q.counter != nil {
		q.counter.WithLabelValues(name, outcome).Inc()
	}
}

// Shutdown stops intake and waits for queued work until ctx ends.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs tasks synchronously on the caller's goroutine. Tests use it
// to observe side effects deterministically.
type Inline struct {
	Log logrus.FieldLogger
}

func (i Inline) Enqueue(t Task) bool {
	if err := safeRun(context.Background(), t); err != nil && i.Log != nil {
		i.Log.WithField("task", t.Name).WithError(err).Warn("background task failed")
	}
	return true
}
