package driver

import (
	"sync"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
)

// Simulator is a software model of a two-axis mount. Each axis is an ideal
// integrator: StartMotion sets a rate and position integrates in real time;
// GoToTarget computes a time-to-reach and reports stopped once that interval
// elapses; SetAxisPosition teleports without motion. Ported from the teacher's
// mount.Simulator (position+rate integrator, goto-by-elapsed-time) and
// generalized from a single RA/Dec pair to two independent step-counted axes.
type Simulator struct {
	mu          sync.Mutex
	initialized bool
	lastErr     error

	axes [2]simAxis

	stepsPerRev int64
	factorStep  float64 // degrees per step

	// SlewRate is the simulated max slewing speed in degrees/second, used to
	// compute goto durations.
	SlewRate float64
}

type simAxis struct {
	positionDeg   float64
	rateDegSec    float64 // non-zero while StartMotion is active
	lastTouch     time.Time
	gotoActive    bool
	gotoStart     time.Time
	gotoDuration  time.Duration
	gotoStartDeg  float64
	gotoTargetDeg float64
}

// NewSimulator constructs a Simulator with the given steps-per-revolution and
// slew rate. factorStep is derived as 360/stepsPerRev (degrees per step).
func NewSimulator(stepsPerRev int64, slewRateDegSec float64) *Simulator {
	if stepsPerRev <= 0 {
		stepsPerRev = 9_024_000 // plausible worm*wheel product, matches typical SkyWatcher mounts
	}
	if slewRateDegSec <= 0 {
		slewRateDegSec = 4.0
	}
	return &Simulator{
		stepsPerRev: stepsPerRev,
		factorStep:  360.0 / float64(stepsPerRev),
		SlewRate:    slewRateDegSec,
	}
}

func (s *Simulator) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *Simulator) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
}

func (s *Simulator) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Simulator) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Capabilities{
		StepsPerRevolution:     [2]int64{s.stepsPerRev, s.stepsPerRev},
		FactorStep:             [2]float64{s.factorStep, s.factorStep},
		WormStepsPerRevolution: [2]float64{float64(s.stepsPerRev), float64(s.stepsPerRev)},
		StepsTimeFreq:          [2]float64{float64(s.stepsPerRev) / 86164.0905 * 360.0, float64(s.stepsPerRev) / 86164.0905 * 360.0},
		FirmwareVersion:        "sim-1.0",
		MountName:              "Simulator",
		CanPPEC:                true,
		CanHomeSensor:          true,
		CanPolarLED:            false,
	}
}

// advance updates a.positionDeg to reflect elapsed time since the last call,
// for both the continuous-rate and goto-in-progress cases. Must be called
// with s.mu held.
func (s *Simulator) advance(idx int, now time.Time) {
	a := &s.axes[idx]
	if a.gotoActive {
		elapsed := now.Sub(a.gotoStart)
		if elapsed >= a.gotoDuration {
			a.positionDeg = a.gotoTargetDeg
			a.gotoActive = false
			return
		}
		frac := float64(elapsed) / float64(a.gotoDuration)
		a.positionDeg = a.gotoStartDeg + (a.gotoTargetDeg-a.gotoStartDeg)*frac
		return
	}
	// Continuous-rate motion integrates implicitly via lastTouch deltas; since
	// this simulator is polled rather than ticked, we fold elapsed time into
	// position here using a monotonic lastTouch per axis.
	if a.rateDegSec != 0 {
		if !a.lastTouch.IsZero() {
			a.positionDeg += a.rateDegSec * now.Sub(a.lastTouch).Seconds()
		}
	}
	a.lastTouch = now
}

func (s *Simulator) SendCommand(cmd Command) (ResultValue, error) {
	switch cmd.Kind {
	case CmdGoToTarget:
		return ResultValue{}, s.goTo(cmd.Axis, cmd.Payload.TargetDeg)
	case CmdSetPosition:
		return ResultValue{}, s.SetAxisPosition(cmd.Axis, cmd.Payload.TargetDeg)
	case CmdStartMotion:
		return ResultValue{}, s.StartAxisMotion(cmd.Axis, cmd.Payload.RateDegSec)
	case CmdStop:
		return ResultValue{}, s.StopAxis(cmd.Axis)
	case CmdStopInstant:
		return ResultValue{}, s.StopAxisInstant(cmd.Axis)
	case CmdReadPosition:
		v, _ := s.GetAxisPosition(cmd.Axis)
		return ResultValue{Float64: v, Int64: s.degToSteps(v)}, nil
	case CmdReadPositionWithTime:
		v, t, _ := s.GetAxisPositionWithTime(cmd.Axis)
		return ResultValue{Float64: v, Instant: t, Int64: s.degToSteps(v)}, nil
	case CmdReadStopped:
		return ResultValue{Bool: s.IsAxisStopped(cmd.Axis)}, nil
	case CmdReadFactorStep:
		return ResultValue{Float64: s.factorStep}, nil
	case CmdReadStepsPerRev:
		return ResultValue{Int64: s.stepsPerRev}, nil
	case CmdEmergencyStop:
		return ResultValue{}, s.EmergencyStop()
	case CmdPulseGuide:
		return ResultValue{}, s.StartAxisMotion(cmd.Axis, cmd.Payload.RateDegSec*float64(cmd.Payload.Direction))
	default:
		return ResultValue{}, mounterr.Driver(mounterr.CodeUnimplemented, "simulator: unsupported command kind %d", cmd.Kind)
	}
}

func (s *Simulator) goTo(a axis.Axis, targetDeg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	now := time.Now()
	s.advance(idx, now)

	dist := targetDeg - s.axes[idx].positionDeg
	if dist < 0 {
		dist = -dist
	}
	dur := time.Duration(dist/s.SlewRate*float64(time.Second)) + 1
	s.axes[idx].gotoActive = true
	s.axes[idx].gotoStart = now
	s.axes[idx].gotoDuration = dur
	s.axes[idx].gotoStartDeg = s.axes[idx].positionDeg
	s.axes[idx].gotoTargetDeg = targetDeg
	s.axes[idx].rateDegSec = 0
	return nil
}

func (s *Simulator) SetAxisPosition(a axis.Axis, deg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	s.axes[idx] = simAxis{positionDeg: deg}
	return nil
}

func (s *Simulator) StartAxisMotion(a axis.Axis, rateDegSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	now := time.Now()
	s.advance(idx, now)
	s.axes[idx].gotoActive = false
	s.axes[idx].rateDegSec = rateDegSec
	s.axes[idx].lastTouch = now
	return nil
}

func (s *Simulator) StopAxis(a axis.Axis) error {
	return s.stop(a)
}

func (s *Simulator) StopAxisInstant(a axis.Axis) error {
	return s.stop(a)
}

func (s *Simulator) stop(a axis.Axis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	now := time.Now()
	s.advance(idx, now)
	s.axes[idx].gotoActive = false
	s.axes[idx].rateDegSec = 0
	return nil
}

func (s *Simulator) EmergencyStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.axes {
		s.advance(i, now)
		s.axes[i].gotoActive = false
		s.axes[i].rateDegSec = 0
	}
	return nil
}

func (s *Simulator) GetAxisPosition(a axis.Axis) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	s.advance(idx, time.Now())
	return s.axes[idx].positionDeg, true
}

func (s *Simulator) GetAxisPositionWithTime(a axis.Axis) (float64, time.Time, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	s.advance(idx, now)
	return s.axes[idx].positionDeg, now, true
}

func (s *Simulator) IsMoving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.axes {
		s.advance(i, now)
		if s.axes[i].gotoActive || s.axes[i].rateDegSec != 0 {
			return true
		}
	}
	return false
}

func (s *Simulator) IsAxisStopped(a axis.Axis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := axisIndex(a)
	s.advance(idx, time.Now())
	return !s.axes[idx].gotoActive && s.axes[idx].rateDegSec == 0
}

func (s *Simulator) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// degToSteps converts a simulated degrees position into the raw step count a
// real driver would report, so callers that key off ResultValue.Int64 (the
// Command Queue's Steps property, the Tracking Engine's updateSteps) see the
// same shape of data this driver or SkyWatcher would produce.
func (s *Simulator) degToSteps(deg float64) int64 {
	if s.factorStep == 0 {
		return 0
	}
	steps := deg / s.factorStep
	if steps >= 0 {
		return int64(steps + 0.5)
	}
	return int64(steps - 0.5)
}

func axisIndex(a axis.Axis) int {
	if a == axis.Primary {
		return 0
	}
	return 1
}
