package batch

import (
	"fmt"
	"sync"
	"time"
)

// Progress is emitted once per processed file, failed or not.
type Progress struct {
	// Percent of files processed so far, 0-100, never decreasing within a run.
	Percent int
	// Index is the position of Path in the job (0-based).
	Index int
	Total int
	Path  string
	// Output is the derived file, empty when nothing was written.
	Output string
	// Err is non-nil when the file failed.
	Err error
}

// Failure records one file that could not be processed.
type Failure struct {
	Index int
	Path  string
	Err   error
}

// Summary is delivered with the completion event.
type Summary struct {
	JobID     string
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
	// Cancelled is set when the run stopped before every file was processed.
	Cancelled bool
	Elapsed   time.Duration
}

// Processed returns the number of files that were attempted.
func (s Summary) Processed() int {
	return s.Succeeded + s.Failed
}

func (s Summary) String() string {
	msg := fmt.Sprintf("resized %d of %d image(s)", s.Succeeded, s.Total)
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Cancelled {
		msg += ", cancelled"
	}
	return msg
}

// Listener observes a batch run. Methods are called from the run goroutine,
// one at a time, in event order. Complete is always the last call.
type Listener interface {
	Progress(p Progress)
	Status(msg string)
	Complete(s Summary)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnProgress func(Progress)
	OnStatus   func(string)
	OnComplete func(Summary)
}

func (l ListenerFuncs) Progress(p Progress) {
	if l.OnProgress != nil {
		l.OnProgress(p)
	}
}

func (l ListenerFuncs) Status(msg string) {
	if l.OnStatus != nil {
		l.OnStatus(msg)
	}
}

func (l ListenerFuncs) Complete(s Summary) {
	if l.OnComplete != nil {
		l.OnComplete(s)
	}
}

// EventKind tags an Event delivered through a ChanListener.
type EventKind int

const (
	EventProgress EventKind = iota
	EventStatus
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventStatus:
		return "status"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is one notification queued by a ChanListener.
type Event struct {
	Kind     EventKind
	Progress Progress
	Status   string
	Summary  Summary
}

// ChanListener queues events on a channel for consumers that prefer to
// receive rather than be called back. The channel is closed after the
// completion event. A ChanListener serves a single run; events from any later
// run are dropped.
type ChanListener struct {
	mu     sync.Mutex
	closed bool
	events chan Event
}

// NewChanListener returns a listener with the given channel buffer. A
// consumer must keep draining Events or the run blocks.
func NewChanListener(buffer int) *ChanListener {
	return &ChanListener{events: make(chan Event, buffer)}
}

// Events returns the receive side of the queue.
func (c *ChanListener) Events() <-chan Event {
	return c.events
}

func (c *ChanListener) Progress(p Progress) {
	c.send(Event{Kind: EventProgress, Progress: p})
}

func (c *ChanListener) Status(msg string) {
	c.send(Event{Kind: EventStatus, Status: msg})
}

func (c *ChanListener) Complete(s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- Event{Kind: EventComplete, Summary: s}
	c.closed = true
	close(c.events)
}

func (c *ChanListener) send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}
