// Package slew implements the Slew Engine (spec §4.5): the coarse-then-fine
// two-stage goto algorithm, pulse guiding, move-axis, home/park, and sync
// operations. It is grounded on the teacher's mount.Simulator.runSlew ticker
// poll loop (internal/mount/mount.go), generalized from a single-phase
// great-circle interpolation into the two-stage converge-by-delta algorithm
// the spec requires, and driven through the Command Queue instead of mutating
// simulator state directly.
package slew

import (
	"context"
	"sync"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/coord"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
	"github.com/draco-mount/alpaca-mount/internal/mtype"
	"github.com/draco-mount/alpaca-mount/internal/queue"
)

// Damping factors for the precision phase (spec §4.5 step 5, §9: preserved
// empirically, asymmetry undocumented in the source).
const (
	DampingPrimarySerial   = 0.25
	DampingSecondarySerial = 0.10
	DampingSimulator       = 0.0
)

const (
	pollInterval        = 100 * time.Millisecond
	coarseTimeoutSerial = 240 * time.Second
	coarseTimeoutSim    = 120 * time.Second
	precisionIterations = 5
	precisionIterCap    = 3000 * time.Millisecond
	axisStopWait        = 5 * time.Second
)

// Predictor supplies the AltAz tracking engine's forward-extrapolated target,
// used by the precision phase when alignment_mode == AltAz and the slew type
// is RaDec (spec §4.5 step 5). Implemented by internal/tracking.
type Predictor interface {
	ExtrapolateAxes(loopTime time.Duration) (x, y float64, ok bool)
}

// PositionReader gives the engine the latest axis snapshot, sourced through
// the same update_steps mechanism the tracking tick uses (spec §5: "the
// tracking tick and the slew poll share the same update_steps mechanism").
type PositionReader interface {
	ForceUpdate(ctx context.Context) error
	AxesXY() (x, y float64)
	IsFullStop() (primary, secondary bool)
}

// Engine executes slews against a queue+driver pair. It holds no state beyond
// what the spec requires between calls: SlewState is published via OnState.
type Engine struct {
	q          *queue.Queue
	pos        PositionReader
	predictor  Predictor
	cancels    *mtype.CancellationHandles
	isSim      bool
	goalSettle time.Duration
	precision  float64

	onState func(mtype.SlewType)

	// moveMu/move track the continuous hand-controller rate set by MoveAxis
	// on each axis, so a rate==0 call knows whether the other axis is still
	// moving (spec §4.5 "if both axes return to zero, slew state returns to
	// None").
	moveMu sync.Mutex
	move   moveState
}

type moveState struct {
	primary, secondary float64
}

// New builds a slew Engine. isSim selects the zero damping factor (spec §9).
// precisionDeg is goto_precision (spec §3).
func New(q *queue.Queue, pos PositionReader, predictor Predictor, cancels *mtype.CancellationHandles, isSim bool, settleTime time.Duration, precisionDeg float64, onState func(mtype.SlewType)) *Engine {
	return &Engine{q: q, pos: pos, predictor: predictor, cancels: cancels, isSim: isSim, goalSettle: settleTime, precision: precisionDeg, onState: onState}
}

func (e *Engine) setState(s mtype.SlewType) {
	if e.onState != nil {
		e.onState(s)
	}
}

func (e *Engine) damping() (primary, secondary float64) {
	if e.isSim {
		return DampingSimulator, DampingSimulator
	}
	return DampingPrimarySerial, DampingSecondarySerial
}

func (e *Engine) coarseTimeout() time.Duration {
	if e.isSim {
		return coarseTimeoutSim
	}
	return coarseTimeoutSerial
}

// Goto runs the coarse-then-fine goto to targetX/targetY (mount-frame axis
// degrees, already mapped and alignment-synced by the caller per spec §4.5
// step 1) and reports completion via the returned error (nil on success,
// mounterr with CodeCancelled on cancellation, a KindTransient CodeAxisBusy
// error on coarse timeout).
func (e *Engine) Goto(parent context.Context, slewType mtype.SlewType, targetX, targetY float64, trackAfter bool, enableTracking func(bool)) error {
	ctx := e.cancels.NewGoto(parent)
	e.setState(slewType)
	defer e.setState(mtype.SlewNone)

	if err := e.hardStopAndWait(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return e.cancelled(ctx)
	}

	if err := e.coarsePhase(ctx, targetX, targetY); err != nil {
		e.hardStop()
		return err
	}

	if e.goalSettle > 0 {
		select {
		case <-time.After(e.goalSettle):
		case <-ctx.Done():
			e.hardStop()
			return e.cancelled(ctx)
		}
	}

	e.precisionPhase(ctx, slewType, targetX, targetY)

	e.hardStop()
	if trackAfter && enableTracking != nil {
		enableTracking(true)
	}
	if ctx.Err() != nil {
		return e.cancelled(ctx)
	}
	return nil
}

func (e *Engine) cancelled(context.Context) error {
	return mounterr.New(mounterr.KindCancelled, mounterr.CodeCancelled, "slew cancelled")
}

// hardStopAndWait issues Stop on both axes and waits for IsAxisFullStop,
// bounded by axisStopWait (spec §5 AxesStopValidate).
func (e *Engine) hardStopAndWait(ctx context.Context) error {
	e.hardStop()
	deadline := time.Now().Add(axisStopWait)
	for time.Now().Before(deadline) {
		p, s := e.pos.IsFullStop()
		if p && s {
			return nil
		}
		select {
		case <-ctx.Done():
			return e.cancelled(ctx)
		case <-time.After(20 * time.Millisecond):
		}
	}
	return mounterr.New(mounterr.KindTransient, mounterr.CodeAxisBusy, "axes did not reach full stop")
}

func (e *Engine) hardStop() {
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStop, Axis: axis.Primary}).Wait()
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStop, Axis: axis.Secondary}).Wait()
}

func (e *Engine) hardStopInstant() {
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStopInstant, Axis: axis.Primary}).Wait()
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStopInstant, Axis: axis.Secondary}).Wait()
}

// coarsePhase issues a single GoToTarget per axis and polls for stop (spec
// §4.5 step 3).
func (e *Engine) coarsePhase(ctx context.Context, targetX, targetY float64) error {
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdGoToTarget, Axis: axis.Primary,
		Payload: driver.CommandPayload{TargetDeg: targetX}})
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdGoToTarget, Axis: axis.Secondary,
		Payload: driver.CommandPayload{TargetDeg: targetY}})

	deadline := time.Now().Add(e.coarseTimeout())
	for {
		select {
		case <-ctx.Done():
			e.hardStopInstant()
			return e.cancelled(ctx)
		case <-time.After(pollInterval):
		}
		p, s := e.pos.IsFullStop()
		if p && s {
			return nil
		}
		if time.Now().After(deadline) {
			return mounterr.New(mounterr.KindTransient, mounterr.CodeAxisBusy, "coarse slew timed out")
		}
	}
}

// precisionPhase converges both axes to within goto_precision using damped
// correction steps (spec §4.5 step 5). Errors are swallowed per-iteration:
// a failed precision step simply stops early, the caller's Goto still
// completes (spec: "Precision phase failure does NOT retry the coarse
// phase").
func (e *Engine) precisionPhase(ctx context.Context, slewType mtype.SlewType, targetX, targetY float64) {
	kPrimary, kSecondary := e.damping()
	loopTime := pollInterval

	for i := 0; i < precisionIterations; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := e.pos.ForceUpdate(ctx); err != nil {
			return
		}

		tx, ty := targetX, targetY
		if e.predictor != nil && slewType == mtype.SlewRaDec {
			if px, py, ok := e.predictor.ExtrapolateAxes(loopTime); ok {
				tx, ty = px, py
			}
		}

		curX, curY := e.pos.AxesXY()
		deltaX := coord.Range180(tx - curX)
		deltaY := coord.Range180(ty - curY)

		doneX := absDeg(deltaX) < e.precision
		doneY := absDeg(deltaY) < e.precision
		if doneX && doneY {
			return
		}

		if !doneX {
			e.q.GetCommandResult(driver.Command{Kind: driver.CmdGoToTarget, Axis: axis.Primary,
				Payload: driver.CommandPayload{TargetDeg: tx + kPrimary*deltaX}})
		}
		if !doneY {
			e.q.GetCommandResult(driver.Command{Kind: driver.CmdGoToTarget, Axis: axis.Secondary,
				Payload: driver.CommandPayload{TargetDeg: ty + kSecondary*deltaY}})
		}

		iterDeadline := time.Now().Add(precisionIterCap)
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			p, s := e.pos.IsFullStop()
			if p && s {
				break
			}
			if time.Now().After(iterDeadline) {
				break
			}
		}
	}
}

func absDeg(d float64) float64 {
	if d < 0 {
		return -d
	}
	return d
}

// AbortSlew cancels any in-flight goto and waits up to 5s for both axes to
// stop (spec §5 "abort_slew cancels goto, waits up to 5s ... transitions to
// SlewState::None").
func (e *Engine) AbortSlew(ctx context.Context) error {
	e.cancels.CancelGoto()
	deadline := time.Now().Add(axisStopWait)
	for time.Now().Before(deadline) {
		p, s := e.pos.IsFullStop()
		if p && s {
			e.setState(mtype.SlewNone)
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	e.hardStopInstant()
	e.setState(mtype.SlewNone)
	return nil
}
