// Package queue implements the single-producer/multi-consumer command queue
// sitting in front of each hardware driver (spec §4.2). One Queue instance
// owns exactly one Driver; two may coexist if the user switches drivers.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
)

// Future is the handle callers block on for a CommandResult (spec §4.2
// get_command_result / §5 "blocks the caller until the queue worker completes
// or the queue is stopped").
type Future struct {
	done chan driver.CommandResult
}

// Wait blocks until the command completes or the queue is stopped.
func (f *Future) Wait() driver.CommandResult {
	return <-f.done
}

// Properties are the queue's observable state, published on every change
// (spec §4.2 "Observable properties via a property-change channel").
type Properties struct {
	IsPulseGuidingRA  bool
	IsPulseGuidingDec bool
	Steps             [2]int64
	IsRunning         bool
}

// OnPropertyChange is invoked (not necessarily synchronously) whenever
// Properties changes.
type OnPropertyChange func(Properties)

type workItem struct {
	cmd    driver.Command
	future *Future
}

// Queue serializes concurrent requests to one Driver, assigns monotonically
// increasing command ids, and delivers results through per-command futures.
// FIFO ordering holds per-axis; interleaving across axes is permitted (spec
// §4.2). There is no direct teacher precedent for this component (the teacher
// calls its simulator directly under a mutex); this is built fresh in the
// repo's established mutex+channel concurrency idiom.
type Queue struct {
	drv driver.Driver

	nextID atomic.Uint64

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	workCh   chan workItem
	wg       sync.WaitGroup

	propsMu  sync.Mutex
	props    Properties
	onChange OnPropertyChange

	// inflight tracks the id of the latest enqueued motion command (goto,
	// start-motion, pulse) per axis, so older motion commands on that axis,
	// or all of them once PreemptAxis clears the record ahead of a Stop, are
	// dropped at the protocol boundary (spec §4.2: "drops not-yet-sent
	// in-flight motion commands for that axis and issues the stop next").
	inflightMu sync.Mutex
	inflight   map[axis.Axis]uint64
}

// New creates a queue bound to drv. Call Start to spawn the worker.
func New(drv driver.Driver) *Queue {
	return &Queue{
		drv:      drv,
		inflight: make(map[axis.Axis]uint64),
	}
}

// Start spawns the worker goroutine that owns drv for the life of the queue.
func (q *Queue) Start(onChange OnPropertyChange) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.onChange = onChange
	q.stopCh = make(chan struct{})
	q.workCh = make(chan workItem, 64)
	q.running = true
	q.setRunning(true)

	q.wg.Add(1)
	go q.workerLoop()
}

func (q *Queue) workerLoop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case item := <-q.workCh:
			q.execute(item)
		}
	}
}

func (q *Queue) execute(item workItem) {
	// Honor preemption: if this motion command's id is no longer the recorded
	// in-flight motion id for its axis (a later motion command on the axis was
	// enqueued, or PreemptAxis cleared the record ahead of a Stop), resolve it
	// here with a failure instead of sending it to the driver.
	if isMotionKind(item.cmd.Kind) {
		q.inflightMu.Lock()
		id, ok := q.inflight[item.cmd.Axis]
		q.inflightMu.Unlock()
		if ok && id != item.cmd.ID {
			item.future.done <- driver.CommandResult{ID: item.cmd.ID, OK: false, Successful: false,
				Err: mounterr.Server(mounterr.CodeUnableToDequeue, "superseded by a later command on axis %s", item.cmd.Axis)}
			return
		}
	}

	val, err := q.drv.SendCommand(item.cmd)

	res := driver.CommandResult{ID: item.cmd.ID, Value: val}
	if err != nil {
		if me, ok := err.(*mounterr.Error); ok {
			res.Err = me
		} else {
			res.Err = mounterr.Wrap(mounterr.KindDriver, mounterr.CodeMount, err)
		}
		res.OK = false
		res.Successful = false
	} else {
		res.OK = true
		res.Successful = true
	}

	if item.cmd.Kind == driver.CmdReadPosition || item.cmd.Kind == driver.CmdReadPositionWithTime {
		q.recordSteps(item.cmd.Axis, val.Int64)
	}

	item.future.done <- res
}

func isMotionKind(k driver.CommandKind) bool {
	switch k {
	case driver.CmdGoToTarget, driver.CmdStartMotion, driver.CmdPulseGuide:
		return true
	default:
		return false
	}
}

// NewID returns a fresh monotonically increasing command id.
func (q *Queue) NewID() uint64 {
	return q.nextID.Add(1)
}

// GetCommandResult enqueues cmd (assigning it cmd.ID = NewID() if unset) and
// returns a Future the caller can Wait() on.
func (q *Queue) GetCommandResult(cmd driver.Command) *Future {
	if cmd.ID == 0 {
		cmd.ID = q.NewID()
	}
	future := &Future{done: make(chan driver.CommandResult, 1)}

	if isMotionKind(cmd.Kind) {
		q.inflightMu.Lock()
		q.inflight[cmd.Axis] = cmd.ID
		q.inflightMu.Unlock()
	}

	q.mu.Lock()
	running := q.running
	workCh := q.workCh
	q.mu.Unlock()

	if !running {
		future.done <- driver.CommandResult{ID: cmd.ID, OK: false, Successful: false,
			Err: mounterr.Server(mounterr.CodeUnableToDequeue, "queue not running")}
		return future
	}

	select {
	case workCh <- workItem{cmd: cmd, future: future}:
	case <-q.stopCh:
		future.done <- driver.CommandResult{ID: cmd.ID, OK: false, Successful: false,
			Err: mounterr.Server(mounterr.CodeUnableToDequeue, "queue shutdown")}
	}
	return future
}

// PreemptAxis marks any currently-enqueued motion command on axis as
// superseded, so that when it reaches the front of the queue it resolves
// immediately with an UnableToDequeue-tagged result instead of reaching the
// wire (spec §4.2: a Stop pre-empts in-flight GoToTarget at the protocol
// boundary). The caller is expected to enqueue the actual Stop/StopInstant
// command right after calling this.
func (q *Queue) PreemptAxis(a axis.Axis) {
	q.inflightMu.Lock()
	q.inflight[a] = 0 // ids start at 1, so no enqueued command matches
	q.inflightMu.Unlock()
}

// Stop drains the queue, shuts down the worker, and delivers synthetic
// UnableToDequeue ("queue stopped") results to any pending futures (spec
// §4.2, §I6).
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()

	// Drain anything left in the channel buffer with a synthetic failure.
	for {
		select {
		case item := <-q.workCh:
			item.future.done <- driver.CommandResult{ID: item.cmd.ID, OK: false, Successful: false,
				Err: mounterr.Server(mounterr.CodeUnableToDequeue, "queue stopped")}
		default:
			q.setRunning(false)
			return
		}
	}
}

func (q *Queue) IsRunning() bool {
	q.propsMu.Lock()
	defer q.propsMu.Unlock()
	return q.props.IsRunning
}

func (q *Queue) Properties() Properties {
	q.propsMu.Lock()
	defer q.propsMu.Unlock()
	return q.props
}

func (q *Queue) setRunning(running bool) {
	q.propsMu.Lock()
	q.props.IsRunning = running
	snap := q.props
	q.propsMu.Unlock()
	q.publish(snap)
}

func (q *Queue) recordSteps(a axis.Axis, steps int64) {
	q.propsMu.Lock()
	if a == axis.Primary {
		q.props.Steps[0] = steps
	} else {
		q.props.Steps[1] = steps
	}
	snap := q.props
	q.propsMu.Unlock()
	q.publish(snap)
}

// SetPulsing sets the published IsPulseGuidingRA/Dec flag for the duration
// the caller owns it (spec §8 property #9: the flag must stay true for the
// whole pulse, not just the instant the driver command is dispatched). The
// Slew Engine calls this directly around its pulse wait rather than the
// single queue worker blocking on the pulse duration itself.
func (q *Queue) SetPulsing(a axis.Axis, active bool) {
	q.setPulsing(a, active)
}

func (q *Queue) setPulsing(a axis.Axis, active bool) {
	q.propsMu.Lock()
	if a == axis.Primary {
		q.props.IsPulseGuidingRA = active
	} else {
		q.props.IsPulseGuidingDec = active
	}
	snap := q.props
	q.propsMu.Unlock()
	q.publish(snap)
}

func (q *Queue) publish(snap Properties) {
	if q.onChange != nil {
		q.onChange(snap)
	}
}
