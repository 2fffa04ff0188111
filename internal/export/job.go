package export

import (
	"context"
	"sync"
	"time"

	"github.com/ZacxDev/video-overlay/internal/media"
)

// State is the lifecycle stage of a job
type State string

const (
	StateIdle      State = "idle"
	StateBuilding  State = "building"
	StateExporting State = "exporting"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Result describes a finished export
type Result struct {
	OutputPath string
	Duration   time.Duration
	RenderSize media.Size
	Elapsed    time.Duration
}

// updateBuffer is how many progress values a slow reader can fall behind
// before older values are dropped
const updateBuffer = 16

// Job is one export. Progress values arrive on Updates in non-decreasing
// order and the channel is closed before the outcome is available from
// Wait.
type Job struct {
	id      string
	request Request
	cancel  context.CancelFunc

	mu       sync.Mutex
	state    State
	progress float64
	result   Result
	err      error

	updates chan float64
	done    chan struct{}
}

func newJob(id string, req Request, cancel context.CancelFunc) *Job {
	return &Job{
		id:      id,
		request: req,
		cancel:  cancel,
		state:   StateIdle,
		updates: make(chan float64, updateBuffer),
		done:    make(chan struct{}),
	}
}

// ID returns the job's unique identifier
func (j *Job) ID() string { return j.id }

// Request returns what the job was asked to do
func (j *Job) Request() Request { return j.request }

// State returns the current lifecycle stage
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the last published progress value
func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Running reports whether the job has not reached a terminal state
func (j *Job) Running() bool {
	return !j.State().Terminal()
}

// Updates delivers progress values. The latest value always gets through;
// intermediate ones may be skipped when the reader lags.
func (j *Job) Updates() <-chan float64 { return j.updates }

// Done is closed once the outcome is available
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel asks the job to stop. Wait then reports a cancellation unless the
// export had already finished.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the job finishes and returns its outcome
func (j *Job) Wait() (Result, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// publish records v if it moves progress forward and forwards it to
// readers without blocking. Calls never overlap.
func (j *Job) publish(v float64) {
	j.mu.Lock()
	if v <= j.progress {
		j.mu.Unlock()
		return
	}
	j.progress = v
	j.mu.Unlock()

	select {
	case j.updates <- v:
	default:
		// drop the oldest value to make room
		select {
		case <-j.updates:
		default:
		}
		j.updates <- v
	}
}

// finish closes the update stream and then releases Wait
func (j *Job) finish(state State, result Result, err error) {
	close(j.updates)

	j.mu.Lock()
	j.state = state
	j.result = result
	j.err = err
	j.mu.Unlock()

	close(j.done)
}
