// Package axis holds the in-memory truth about each mount axis: the last
// reading from hardware and its derived app-frame angle (spec §3, §4.4).
package axis

import (
	"sync"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/coord"
)

// Axis identifies one of the mount's two motor axes.
type Axis int

const (
	Primary Axis = iota
	Secondary
)

func (a Axis) String() string {
	if a == Primary {
		return "primary"
	}
	return "secondary"
}

// Snapshot is an immutable, consistent read of one axis's state, the shape
// readers take instead of holding the state's lock (spec §5 "readers take a
// snapshot of (step_count, timestamp, degrees_app)").
type Snapshot struct {
	StepCount     int64
	StepTimestamp time.Time
	DegreesApp    float64
}

// State is one axis's live state. All mutation happens under mu; readers call
// Snapshot() rather than reading fields directly.
type State struct {
	mu sync.RWMutex

	stepCount     int64
	stepTimestamp time.Time
	degreesApp    float64

	stepsPerRev     int64
	wormStepsPerRev float64
	factorStep      float64 // degrees per step, driver-reported

	homeOffsetDeg float64
	parkOffsetDeg float64
}

// New creates axis state with the given hardware-reported constants (spec I1:
// steps_per_rev > 0 once connected; I2: factor_step set before first convert).
func New(stepsPerRev int64, wormStepsPerRev, factorStep float64) *State {
	return &State{
		stepsPerRev:     stepsPerRev,
		wormStepsPerRev: wormStepsPerRev,
		factorStep:      factorStep,
	}
}

// SetOffsets records the configured home/park offsets (mount-frame degrees).
func (s *State) SetOffsets(homeOffsetDeg, parkOffsetDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.homeOffsetDeg = homeOffsetDeg
	s.parkOffsetDeg = parkOffsetDeg
}

// HomeOffset and ParkOffset return the configured offsets.
func (s *State) HomeOffset() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.homeOffsetDeg
}

func (s *State) ParkOffset() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parkOffsetDeg
}

// StepsPerRev, WormStepsPerRev, FactorStep expose the hardware constants.
func (s *State) StepsPerRev() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepsPerRev
}

func (s *State) WormStepsPerRev() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wormStepsPerRev
}

func (s *State) FactorStep() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factorStep
}

// SetFactorStep updates factor_step, e.g. after a custom-gearing reconfiguration.
func (s *State) SetFactorStep(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factorStep = f
}

// SetConstants replaces the hardware-reported constants in place, e.g. once
// Connect reads the driver's real Capabilities - the State itself stays the
// same object so any engine already holding a reference to it sees the
// update rather than a stale placeholder.
func (s *State) SetConstants(stepsPerRev int64, wormStepsPerRev, factorStep float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepsPerRev = stepsPerRev
	s.wormStepsPerRev = wormStepsPerRev
	s.factorStep = factorStep
}

// Update stores a fresh step-count reading and the app-frame angle the caller
// derived for it (via coord.AxesMountToApp, which must see both axes' mount
// degrees together to fold pier side correctly - that's why this takes the
// already-converted angle rather than computing it itself), atomically
// (invariant: "degrees_app = ConvertStepsToApp(step_count) whenever
// step_timestamp is current").
func (s *State) Update(stepCount int64, ts time.Time, degreesApp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepCount = stepCount
	s.stepTimestamp = ts
	s.degreesApp = degreesApp
}

// MountDegrees converts the last-read step count to mount-frame degrees using
// this axis's factor_step, without needing the pair's lock held together.
func (s *State) MountDegrees() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StepsToDegrees(s.stepCount, s.factorStep)
}

// Snapshot returns a consistent read of step count, timestamp and app degrees.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		StepCount:     s.stepCount,
		StepTimestamp: s.stepTimestamp,
		DegreesApp:    s.degreesApp,
	}
}

// StepsToDegrees converts a raw step count to mount-frame degrees using
// factor_step (degrees per step). Round-trips with DegreesToSteps within step
// quantization (spec §8 round-trip law).
func StepsToDegrees(steps int64, factorStep float64) float64 {
	return float64(steps) * factorStep
}

// DegreesToSteps is the inverse of StepsToDegrees, rounding to the nearest step.
func DegreesToSteps(deg, factorStep float64) int64 {
	if factorStep == 0 {
		return 0
	}
	steps := deg / factorStep
	if steps >= 0 {
		return int64(steps + 0.5)
	}
	return int64(steps - 0.5)
}

// Pair bundles both axes, the unit the Slew/Tracking engines operate on.
type Pair struct {
	Primary   *State
	Secondary *State
}

// NewPair builds a Primary/Secondary pair sharing identical hardware constants,
// the common case; callers may replace either State for asymmetric mounts.
func NewPair(stepsPerRev int64, wormStepsPerRev, factorStep float64) Pair {
	return Pair{
		Primary:   New(stepsPerRev, wormStepsPerRev, factorStep),
		Secondary: New(stepsPerRev, wormStepsPerRev, factorStep),
	}
}

// Get returns the State for the given Axis.
func (p Pair) Get(a Axis) *State {
	if a == Primary {
		return p.Primary
	}
	return p.Secondary
}

// UpdateFromMount reads both axes' mount-frame degrees, converts them jointly
// to the app frame (pier-side folding needs both axes at once - see
// coord.AxesMountToApp), and stores the result on each axis's State.
func (p Pair) UpdateFromMount(primarySteps, secondarySteps int64, ts time.Time, ctx coord.Context) {
	pMount := StepsToDegrees(primarySteps, p.Primary.FactorStep())
	sMount := StepsToDegrees(secondarySteps, p.Secondary.FactorStep())
	pApp, sApp := coord.AxesMountToApp(pMount, sMount, ctx)
	p.Primary.Update(primarySteps, ts, pApp)
	p.Secondary.Update(secondarySteps, ts, sApp)
}
