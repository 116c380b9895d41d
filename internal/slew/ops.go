package slew

import (
	"context"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/mtype"
)

// MoveAxis issues StartMotion(rate) or Stop (rate==0) for a, and reports
// whether any axis is still moving afterward so the façade can manage
// SlewState and predictor re-anchoring.
func (e *Engine) MoveAxis(a axis.Axis, rateDegSec float64) (anyMoving bool, err error) {
	e.moveMu.Lock()
	if a == axis.Primary {
		e.move.primary = rateDegSec
	} else {
		e.move.secondary = rateDegSec
	}
	anyMoving = e.move.primary != 0 || e.move.secondary != 0
	e.moveMu.Unlock()

	if rateDegSec == 0 {
		res := e.q.GetCommandResult(driver.Command{Kind: driver.CmdStop, Axis: a}).Wait()
		if !res.OK {
			return anyMoving, res.Err
		}
		if !anyMoving {
			e.setState(mtype.SlewNone)
		}
		return anyMoving, nil
	}

	e.setState(mtype.SlewMoveAxis)
	res := e.q.GetCommandResult(driver.Command{Kind: driver.CmdStartMotion, Axis: a,
		Payload: driver.CommandPayload{RateDegSec: rateDegSec}}).Wait()
	if !res.OK {
		return anyMoving, res.Err
	}
	return true, nil
}

// PulseGuide starts a guide pulse on the axis direction indicates, quantised
// up to the axis minimum or dropped if below half the minimum (spec §4.5
// "Pulse guide"). Overlapping pulses on the same axis cancel the earlier one
// via the per-axis cancellation handle.
func (e *Engine) PulseGuide(parent context.Context, dir mtype.GuideDirection, durationMs uint32, st4Rate, minPulseMs float64) error {
	if float64(durationMs) < minPulseMs/2 {
		return nil // dropped: well below minimum
	}
	if float64(durationMs) < minPulseMs {
		durationMs = uint32(minPulseMs)
	}

	a := dir.Axis()
	ctx := e.cancels.NewPulseGuide(parent, a)

	e.q.SetPulsing(a, true)
	defer e.q.SetPulsing(a, false)

	res := e.q.GetCommandResult(driver.Command{Kind: driver.CmdPulseGuide, Axis: a,
		Payload: driver.CommandPayload{RateDegSec: st4Rate, DurationMs: durationMs, Direction: int(dir.Sign())}}).Wait()
	if !res.OK {
		return res.Err
	}

	select {
	case <-time.After(time.Duration(durationMs) * time.Millisecond):
	case <-ctx.Done():
		return e.cancelled(ctx)
	}

	stopRes := e.q.GetCommandResult(driver.Command{Kind: driver.CmdStop, Axis: a}).Wait()
	if !stopRes.OK {
		return stopRes.Err
	}
	return nil
}

// SyncToAxes teleports the current position to targetX/targetY without
// motion (spec §4.1 SetPosition, §4.5 sync_to_coords/sync_to_altaz dispatch
// through the Coordinate Engine into this call once the caller has mapped
// the requested coordinates to mount axes).
func (e *Engine) SyncToAxes(targetX, targetY float64) error {
	rx := e.q.GetCommandResult(driver.Command{Kind: driver.CmdSetPosition, Axis: axis.Primary,
		Payload: driver.CommandPayload{TargetDeg: targetX}}).Wait()
	if !rx.OK {
		return rx.Err
	}
	ry := e.q.GetCommandResult(driver.Command{Kind: driver.CmdSetPosition, Axis: axis.Secondary,
		Payload: driver.CommandPayload{TargetDeg: targetY}}).Wait()
	if !ry.OK {
		return ry.Err
	}
	return nil
}

// FindHome slews to the configured home axes (spec §4.5 find_home), using the
// generic Goto with SlewType Home.
func (e *Engine) FindHome(parent context.Context, homeX, homeY float64) error {
	return e.Goto(parent, mtype.SlewHome, homeX, homeY, false, nil)
}

// Park slews to a named park position (spec §4.5 park(name)).
func (e *Engine) Park(parent context.Context, parkX, parkY float64) error {
	return e.Goto(parent, mtype.SlewPark, parkX, parkY, false, nil)
}

