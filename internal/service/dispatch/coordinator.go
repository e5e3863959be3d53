// Package dispatch serializes answer-backend calls so that exactly one is
// in flight per session, with later questions queued in arrival order.
package dispatch

import (
	"context"
	"time"
)

// DefaultStuckTimeout is how long a call may run before it is released.
const DefaultStuckTimeout = 30 * time.Second

// Job is a question waiting to be answered.
type Job struct {
	ID         string
	Text       string
	EnqueuedAt time.Time
}

// Call is the job currently in flight.
type Call struct {
	ID        string
	Job       Job
	StartedAt time.Time
}

// Launcher starts the backend call for c and returns a function that
// cancels it. The result must be reported back through Complete.
type Launcher func(c Call) context.CancelFunc

// Coordinator owns the in-flight flag and the overflow queue.
// Not safe for concurrent use; owned by the session reactor.
type Coordinator struct {
	launch       Launcher
	nextID       func() string
	stuckTimeout time.Duration

	current *Call
	cancel  context.CancelFunc
	queue   *Queue[Job]
}

// NewCoordinator creates an idle coordinator. nextID names each job.
func NewCoordinator(launch Launcher, nextID func() string, stuckTimeout time.Duration) *Coordinator {
	if stuckTimeout <= 0 {
		stuckTimeout = DefaultStuckTimeout
	}
	return &Coordinator{
		launch:       launch,
		nextID:       nextID,
		stuckTimeout: stuckTimeout,
		queue:        NewQueue[Job](),
	}
}

// Submit starts text immediately when idle, otherwise appends it to the
// queue. The returned call is non-nil only if a call was started.
func (c *Coordinator) Submit(text string, now time.Time) (Job, *Call) {
	job := Job{
		ID:         c.nextID(),
		Text:       text,
		EnqueuedAt: now,
	}
	if c.current != nil {
		c.queue.Enqueue(job)
		return job, nil
	}
	return job, c.start(job, now)
}

// IsCurrent reports whether id names the in-flight call.
func (c *Coordinator) IsCurrent(id string) bool {
	return c.current != nil && c.current.ID == id
}

// Complete clears the in-flight call id and starts the next queued job.
// Returns false when id is not current (late or cancelled results).
func (c *Coordinator) Complete(id string, now time.Time) (*Call, bool) {
	if !c.IsCurrent(id) {
		return nil, false
	}
	c.clear()
	return c.startNext(now), true
}

// ReleaseStuck cancels and forgets the call id once it has run past the
// stuck timeout, then continues with the queue.
func (c *Coordinator) ReleaseStuck(id string, now time.Time) (*Call, bool) {
	if !c.IsCurrent(id) || now.Sub(c.current.StartedAt) < c.stuckTimeout {
		return nil, false
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.clear()
	return c.startNext(now), true
}

// StuckDeadline returns when the in-flight call becomes releasable.
func (c *Coordinator) StuckDeadline() (time.Time, bool) {
	if c.current == nil {
		return time.Time{}, false
	}
	return c.current.StartedAt.Add(c.stuckTimeout), true
}

// InFlight returns a copy of the in-flight call.
func (c *Coordinator) InFlight() (Call, bool) {
	if c.current == nil {
		return Call{}, false
	}
	return *c.current, true
}

// Pending returns the queued jobs, oldest first.
func (c *Coordinator) Pending() []Job {
	return c.queue.Items()
}

// QueueLen returns the number of queued jobs.
func (c *Coordinator) QueueLen() int {
	return c.queue.Len()
}

// Reset cancels the in-flight call and drops the queue.
func (c *Coordinator) Reset() {
	if c.cancel != nil {
		c.cancel()
	}
	c.clear()
	c.queue.Clear()
}

func (c *Coordinator) start(job Job, now time.Time) *Call {
	call := &Call{ID: job.ID, Job: job, StartedAt: now}
	c.current = call
	c.cancel = c.launch(*call)
	cp := *call
	return &cp
}

func (c *Coordinator) startNext(now time.Time) *Call {
	job, ok := c.queue.Dequeue()
	if !ok {
		return nil
	}
	return c.start(job, now)
}

func (c *Coordinator) clear() {
	c.current = nil
	c.cancel = nil
}
