// Package batch drives a crop over an ordered list of files on a background
// goroutine and reports progress and completion to a Listener.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-resizer/internal/log"
	"github.com/menta2k/image-resizer/pkg/cropper"
	"github.com/menta2k/image-resizer/pkg/processing"
)

var (
	// ErrNoFiles rejects a job with an empty file list.
	ErrNoFiles = errors.New("no images to resize")
	// ErrBusy rejects a start while a run of the same Runner is in flight.
	ErrBusy = errors.New("a batch is already running")
)

// SkippedMessage is the status emitted at the end of a run with failures.
const SkippedMessage = "one or more images were skipped"

// ImageProcessor crops a single file. processing.Processor implements it.
type ImageProcessor interface {
	Process(ctx context.Context, path string, ratio cropper.Ratio, preserveMetadata bool) (processing.Result, error)
}

// Job is one batch request.
type Job struct {
	// ID correlates log lines; a UUID is assigned when empty.
	ID               string
	Paths            []string
	Ratio            cropper.Ratio
	PreserveMetadata bool
}

// Options tunes the runner.
type Options struct {
	// Workers > 1 processes files concurrently. Progress then counts
	// completed files instead of following list order.
	Workers int
}

// Runner executes at most one job at a time.
type Runner struct {
	proc    ImageProcessor
	opts    Options
	running atomic.Bool
}

// NewRunner creates a runner around proc.
func NewRunner(proc ImageProcessor, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{proc: proc, opts: opts}
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run is the handle of a started job.
type Run struct {
	id      string
	done    chan struct{}
	summary Summary
}

// ID returns the job ID.
func (r *Run) ID() string {
	return r.id
}

// Done is closed after the completion event has been delivered.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is complete and returns its summary.
func (r *Run) Wait() Summary {
	<-r.done
	return r.summary
}

// Start validates job and processes it on a new goroutine. Validation
// failures and ErrBusy are returned before anything starts; all per-file
// errors are reported to l instead. The runner stays busy until
// l.Complete has returned. ctx is checked between files only.
func (r *Runner) Start(ctx context.Context, job Job, l Listener) (*Run, error) {
	if len(job.Paths) == 0 {
		return nil, ErrNoFiles
	}
	if !job.Ratio.Valid() {
		return nil, fmt.Errorf("%w: %s", cropper.ErrInvalidRatio, job.Ratio)
	}
	if l == nil {
		l = ListenerFuncs{}
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	job.Paths = append([]string(nil), job.Paths...)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	run := &Run{id: job.ID, done: make(chan struct{})}

	go func() {
		defer close(run.done)
		defer r.running.Store(false)

		s := r.execute(ctx, job, l)
		run.summary = s
		l.Complete(s)
	}()
	return run, nil
}

func (r *Runner) execute(ctx context.Context, job Job, l Listener) Summary {
	start := time.Now()
	total := len(job.Paths)
	s := Summary{JobID: job.ID, Total: total}
	log.Printf("job=%s start files=%d ratio=%s keep_metadata=%t workers=%d",
		job.ID, total, job.Ratio, job.PreserveMetadata, r.opts.Workers)

	record := func(index, done int, path string, res processing.Result, err error) {
		p := Progress{
			Percent: percent(done, total),
			Index:   index,
			Total:   total,
			Path:    path,
			Output:  res.Output,
			Err:     err,
		}
		if err != nil {
			s.Failed++
			s.Failures = append(s.Failures, Failure{Index: index, Path: path, Err: err})
			log.Printf("job=%s file=%s error: %v", job.ID, path, err)
			l.Status(fmt.Sprintf("skipped %s: %v", path, err))
		} else {
			s.Succeeded++
			log.Debugf("job=%s file=%s wrote %s", job.ID, path, res.Output)
		}
		l.Progress(p)
	}

	if r.opts.Workers > 1 && total > 1 {
		s.Cancelled = r.fanOut(ctx, job, record)
	} else {
		for i, path := range job.Paths {
			if ctx.Err() != nil {
				s.Cancelled = true
				break
			}
			res, err := r.process(ctx, job, path)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				s.Cancelled = true
				break
			}
			record(i, i+1, path, res, err)
		}
	}

	sort.SliceStable(s.Failures, func(i, j int) bool { return s.Failures[i].Index < s.Failures[j].Index })
	s.Elapsed = time.Since(start)
	if s.Failed > 0 {
		l.Status(SkippedMessage)
	}
	log.Printf("job=%s finish %s in %s", job.ID, s, s.Elapsed.Round(time.Millisecond))
	return s
}

// fanOut processes files on up to Workers goroutines. Progress emission is
// serialized and counts completed files. It reports whether ctx ended the
// run early.
func (r *Runner) fanOut(ctx context.Context, job Job, record func(int, int, string, processing.Result, error)) bool {
	var (
		mu        sync.Mutex
		completed int
		cancelled bool
	)
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)

	for i, path := range job.Paths {
		if ctx.Err() != nil {
			mu.Lock()
			cancelled = true
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return nil
			}
			res, err := r.process(ctx, job, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				cancelled = true
				return nil
			}
			completed++
			record(i, completed, path, res, err)
			return nil
		})
	}
	_ = g.Wait()
	return cancelled
}

// process isolates a single file: a panicking processor becomes an error.
func (r *Runner) process(ctx context.Context, job Job, path string) (res processing.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("processing %s panicked: %v", path, p)
		}
	}()
	return r.proc.Process(ctx, path, job.Ratio, job.PreserveMetadata)
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
