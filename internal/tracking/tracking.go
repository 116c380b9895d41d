// Package tracking implements the Tracking Engine (spec §4.6): the periodic
// display tick that reads axes and recomputes tracking rates, and the slower
// AltAz predictor tick that re-issues a forward-extrapolated rate vector.
// Grounded on the teacher's mount.Simulator.startTracking ticker goroutine
// (internal/mount/mount.go), generalized from a single constant sidereal nudge
// into full rate composition (custom gearing, PEC, move-axis, rate offsets)
// plus the AltAz short-horizon predictor spec §4.6 adds.
package tracking

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/coord"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/limits"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
	"github.com/draco-mount/alpaca-mount/internal/queue"
)

// Mode selects which constant tracking rate the engine composes (spec §3 rates).
type Mode int

const (
	ModeOff Mode = iota
	ModeSidereal
	ModeLunar
	ModeSolar
	ModeKing
)

// Config is the subset of mount.Config the engine needs, passed directly
// rather than importing the mount package (which imports this one).
type Config struct {
	Latitude    float64
	Longitude   float64
	Alignment   coord.AlignmentMode
	PolarSide   coord.PolarMode
	Hemisphere  coord.Hemisphere
	HomeOffsetX float64
	HomeOffsetY float64

	SiderealRateArcSecSec float64
	LunarRateArcSecSec    float64
	SolarRateArcSecSec    float64
	KingRateArcSecSec     float64

	DisplayInterval time.Duration
	AltAzInterval   time.Duration

	CustomGearingEnabled bool
	CustomGearingOffset  int64
	StepsPerRev          [2]int64
	StepsTimeFreq        [2]float64

	Limits          limits.Config
	LimitTracking   bool
	LimitPark       bool
	HzLimitTracking bool

	PecBinSteps float64 // steps per PEC bin, worm-relative
}

// Properties is the engine's observable state, published on every display tick.
type Properties struct {
	TrackingOn    bool
	SiderealTime  float64 // hours
	LHA           float64 // hours, [-12,12)
	IsHome        bool
	EastOfPier    bool
	Limits        limits.Status
	TimerOverruns uint64
	RateX         float64 // degrees/sec, last rate sent to the primary axis
	RateY         float64
}

// Engine is the Tracking Engine. It owns no axis hardware itself; all driver
// I/O goes through the shared Command Queue, the same one the Slew Engine uses
// (spec §5: "the tracking tick and the slew poll share the same update_steps
// mechanism").
type Engine struct {
	pair axis.Pair
	q    *queue.Queue

	cfgFn         func() Config
	targetFn      func() (raHours, decDeg float64, ok bool)
	moveRatesFn   func() (primary, secondary float64)
	rateOffsetFn  func() (raArcSecSec, decArcSecSec float64)
	onProps       func(Properties)
	onLimit       func(limits.Status)
	onParkAtLimit func()
	onPECError    func(err error)

	// parkTriggered latches park-at-limit so a sustained breach issues one
	// park request instead of one per tick; it clears once the breach heals.
	parkTriggered atomic.Bool

	modeMu sync.Mutex
	mode   Mode

	// timerLock is the non-reentrant display-tick guard (spec §4.4/§5: "if a
	// tick is still processing when the next fires, the new tick increments a
	// timer_overruns counter and returns without doing work").
	timerLock     atomic.Bool
	timerOverruns atomic.Uint64

	// altazLock is the AltAz predictor's single-entry compare-and-swap guard
	// (spec §4.6: "single-entry via altaz_tracking_lock (compare-and-swap)").
	altazLock atomic.Bool

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	mu           sync.Mutex
	lastLST      float64
	lastLHA      float64
	isHome       bool
	eastOfPier   bool
	lastRate     [2]float64 // last rate sent to [primary, secondary]
	pec          pecTables
	lastPecBin   int
	pecDisabled  bool
	lastTarget   targetSnapshot
	homeAxes     [2]float64
	logger       *log.Logger
}

type targetSnapshot struct {
	raHours, decDeg float64
	ok              bool
	setAt           time.Time
}

// New builds a tracking Engine over pair/q. cfgFn returns the live config
// snapshot (mount.Config is immutable; the façade swaps its pointer and this
// closure always sees the latest one). targetFn returns the currently latched
// slew target (for the AltAz predictor); moveRatesFn returns the Slew
// Engine's continuous move-axis rates; rateOffsetFn returns the Alpaca
// rightascensionrate/declinationrate custom offsets (arcsec/sec).
func New(pair axis.Pair, q *queue.Queue, cfgFn func() Config,
	targetFn func() (float64, float64, bool),
	moveRatesFn func() (float64, float64),
	rateOffsetFn func() (float64, float64),
	onProps func(Properties), onLimit func(limits.Status), onParkAtLimit func(), onPECError func(error),
) *Engine {
	return &Engine{
		pair:          pair,
		q:             q,
		cfgFn:         cfgFn,
		targetFn:      targetFn,
		moveRatesFn:   moveRatesFn,
		rateOffsetFn:  rateOffsetFn,
		onProps:       onProps,
		onLimit:       onLimit,
		onParkAtLimit: onParkAtLimit,
		onPECError:    onPECError,
		logger:        log.New(logWriter{}, "[tracking] ", log.LstdFlags),
	}
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) { return len(p), nil }

// SetLogOutput lets the façade route tracking's log lines to its own sink;
// tests typically leave this unset (discarded).
func (e *Engine) SetLogOutput(w interface{ Write([]byte) (int, error) }) {
	e.logger = log.New(w, "[tracking] ", log.LstdFlags)
}

// SetHomeAxes records the configured home axis degrees, used to decide IsHome.
func (e *Engine) SetHomeAxes(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.homeAxes = [2]float64{x, y}
}

// SetMode sets the active tracking rate (sidereal/lunar/solar/king/off).
func (e *Engine) SetMode(m Mode) {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()
	e.mode = m
}

func (e *Engine) Mode() Mode {
	e.modeMu.Lock()
	defer e.modeMu.Unlock()
	return e.mode
}

func (e *Engine) IsTracking() bool {
	return e.Mode() != ModeOff
}

// LoadPEC installs the PEC lookup tables (spec §4.6 "two sorted tables").
// An empty table disables PEC at the next lookup, which logs once, matching spec's
// "missed lookup with an empty table disables PEC and logs an error".
func (e *Engine) LoadPEC(wormBins, fullRevBins []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pec = newPECTables(wormBins, fullRevBins)
	e.pecDisabled = false
	e.lastPecBin = -1
}

// Start spawns the display-tick goroutine, and the AltAz predictor goroutine
// when the engine's config says Alignment == AltAz (spec §5: "one AltAz
// predictor thread; only active in AltAz alignment mode").
func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.displayLoop(ctx)

	cfg := e.cfgFn()
	if cfg.Alignment == coord.AltAz {
		e.wg.Add(1)
		go e.altazLoop(ctx)
	}
}

// Stop halts both timers (spec §5: "cancel tokens -> stop timers -> validate
// axes -> drain queue -> close driver"; this is the "stop timers" step, called
// by the façade before draining the queue).
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) displayLoop(ctx context.Context) {
	defer e.wg.Done()
	interval := e.cfgFn().DisplayInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.displayTick(ctx)
		}
	}
}

func (e *Engine) altazLoop(ctx context.Context) {
	defer e.wg.Done()
	interval := e.cfgFn().AltAzInterval
	if interval <= 0 {
		interval = 2500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.altazTick(ctx)
		}
	}
}

// displayTick is one iteration of the spec §4.6 "Display tick": non-reentrant
// via try-lock, update_steps, LST/LHA, limit check, PEC bin check, rate
// composition for non-AltAz alignment modes, pier-side/home-state refresh.
func (e *Engine) displayTick(ctx context.Context) {
	if !e.timerLock.CompareAndSwap(false, true) {
		e.timerOverruns.Add(1)
		return
	}
	defer e.timerLock.Store(false)

	cfg := e.cfgFn()
	now := time.Now()
	lst := coord.LST(now, cfg.Longitude)

	if err := e.updateSteps(ctx, cfg); err != nil {
		return
	}

	raHours, _, ok := e.targetFn()
	lha := e.lastLHA
	if ok {
		lha = coord.RaToHA(raHours, lst)
	}

	e.mu.Lock()
	e.lastLST = lst
	e.lastLHA = lha
	primSnap := e.pair.Primary.Snapshot()
	secSnap := e.pair.Secondary.Snapshot()
	e.isHome = math.Abs(coord.Range180(primSnap.DegreesApp-e.homeAxes[0])) < 0.1 &&
		math.Abs(coord.Range180(secSnap.DegreesApp-e.homeAxes[1])) < 0.1
	e.eastOfPier = lha < 0
	e.mu.Unlock()

	status := limits.Check(e.pair.Primary.MountDegrees(), e.pair.Secondary.MountDegrees(), cfg.Limits)
	e.checkAxisLimits(status, cfg)

	e.checkPECTraining(cfg)

	if cfg.Alignment != coord.AltAz && e.IsTracking() {
		e.composeAndApplyEquatorialRate(cfg)
	}

	e.publishProps(status)
}

// updateSteps reads both axes' positions through the shared queue and stores
// the result on the axis Pair (spec §4.4): the Slew Engine's ForceUpdate and
// this tick both funnel through this one function.
func (e *Engine) updateSteps(ctx context.Context, cfg Config) error {
	rp := e.q.GetCommandResult(driver.Command{Kind: driver.CmdReadPositionWithTime, Axis: axis.Primary})
	rs := e.q.GetCommandResult(driver.Command{Kind: driver.CmdReadPositionWithTime, Axis: axis.Secondary})

	resP := rp.Wait()
	resS := rs.Wait()
	if !resP.OK || !resS.OK {
		return mounterr.Server(mounterr.CodeMount, "tracking: position read failed")
	}

	ts := resP.Value.Instant
	if ts.IsZero() {
		ts = time.Now()
	}

	ctxCoord := coord.Context{
		Latitude:    cfg.Latitude,
		Longitude:   cfg.Longitude,
		Alignment:   cfg.Alignment,
		PolarSide:   cfg.PolarSide,
		Hemisphere:  cfg.Hemisphere,
		HomeOffsetX: cfg.HomeOffsetX,
		HomeOffsetY: cfg.HomeOffsetY,
	}
	e.pair.UpdateFromMount(resP.Value.Int64, resS.Value.Int64, ts, ctxCoord)
	return ctx.Err()
}

// checkAxisLimits runs the Limit Monitor's per-tick decision (spec §4.8):
// a breach is an operational alert, not a fault, and each reaction is gated
// on its own config flag rather than firing unconditionally.
func (e *Engine) checkAxisLimits(status limits.Status, cfg Config) {
	if !status.Breached() {
		e.parkTriggered.Store(false)
		return
	}

	if cfg.LimitTracking {
		if e.IsTracking() {
			e.SetMode(ModeOff)
		}
		if e.onLimit != nil {
			e.onLimit(status)
		}
	}

	if cfg.LimitPark && e.parkTriggered.CompareAndSwap(false, true) && e.onParkAtLimit != nil {
		e.onParkAtLimit()
	}
}

// checkPECTraining looks up and caches the current PEC bin (spec §4.6 PEC
// runtime); the bin's correction enters the rate at the next
// composeAndApplyEquatorialRate. A missing table disables PEC with a single
// logged error rather than retrying every tick.
func (e *Engine) checkPECTraining(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pecDisabled || cfg.PecBinSteps <= 0 {
		return
	}
	if !e.pec.hasData() {
		e.pecDisabled = true
		e.logger.Printf("PEC table empty, disabling PEC lookup; tracking continues without correction")
		return
	}
	steps := e.pair.Primary.Snapshot().StepCount
	stepsPerRev := cfg.StepsPerRev[0]
	if stepsPerRev <= 0 {
		return
	}
	position := steps % stepsPerRev
	if position < 0 {
		position += stepsPerRev
	}
	bin := int(float64(position)/cfg.PecBinSteps) % 100
	if bin == e.lastPecBin {
		return
	}
	e.lastPecBin = bin
}

// currentPECCorrection returns the degrees/sec correction for the cached bin
// (arcsec/sec in the table, converted to degrees/sec here).
func (e *Engine) currentPECCorrection() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pecDisabled || !e.pec.hasData() {
		return 0
	}
	return e.pec.worm[e.lastPecBin] / 3600.0
}

func (e *Engine) baseRateDegSec(cfg Config) float64 {
	switch e.Mode() {
	case ModeSidereal:
		return cfg.SiderealRateArcSecSec / 3600.0
	case ModeLunar:
		return cfg.LunarRateArcSecSec / 3600.0
	case ModeSolar:
		return cfg.SolarRateArcSecSec / 3600.0
	case ModeKing:
		return cfg.KingRateArcSecSec / 3600.0
	default:
		return 0
	}
}

// customGearingDelta computes the rate adjustment custom-geared mounts need
// per spec §4.6: I = (steps_time_freq/steps_per_rev) * 1_296_000 / sidereal,
// offset by the configured integer, applied as a proportional correction to
// the nominal sidereal rate (the spec does not fully specify the sign/scale
// of the offset application; this preserves the documented divisor formula
// and treats the offset as a parts-per-I correction, the most direct reading
// of "the effective sidereal divisor ... is adjusted").
func customGearingDelta(cfg Config, siderealDegSec float64) float64 {
	if !cfg.CustomGearingEnabled || cfg.StepsPerRev[0] <= 0 || cfg.SiderealRateArcSecSec <= 0 {
		return 0
	}
	i := (cfg.StepsTimeFreq[0] / float64(cfg.StepsPerRev[0])) * 1_296_000.0 / cfg.SiderealRateArcSecSec
	if i == 0 {
		return 0
	}
	adjustedI := i + float64(cfg.CustomGearingOffset)
	if adjustedI == 0 {
		return 0
	}
	return siderealDegSec * (i/adjustedI - 1.0)
}

const rateQuantizationDegSec = 1e-7

// composeAndApplyEquatorialRate composes the per-axis tracking rate for
// non-AltAz alignment modes (spec §4.6 "Equatorial tracking rate
// composition") and re-sends it to the driver when either axis rate changes
// by more than rateQuantizationDegSec. The current PEC bin's correction is
// part of the composed rate, so a bin change causes a re-send only when it
// moves the rate past that threshold; there is no separate re-send on a PEC
// bin boundary.
func (e *Engine) composeAndApplyEquatorialRate(cfg Config) {
	base := e.baseRateDegSec(cfg)
	gearingDelta := customGearingDelta(cfg, cfg.SiderealRateArcSecSec/3600.0)
	movePrimary, moveSecondary := 0.0, 0.0
	if e.moveRatesFn != nil {
		movePrimary, moveSecondary = e.moveRatesFn()
	}
	raOffsetArcSec, decOffsetArcSec := 0.0, 0.0
	if e.rateOffsetFn != nil {
		raOffsetArcSec, decOffsetArcSec = e.rateOffsetFn()
	}
	pecCorrection := e.currentPECCorrection()

	rateX := base + movePrimary + gearingDelta + raOffsetArcSec/3600.0 + pecCorrection
	rateY := moveSecondary + gearingDelta + decOffsetArcSec/3600.0

	e.mu.Lock()
	changed := math.Abs(rateX-e.lastRate[0]) > rateQuantizationDegSec || math.Abs(rateY-e.lastRate[1]) > rateQuantizationDegSec
	e.mu.Unlock()
	if !changed {
		return
	}

	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStartMotion, Axis: axis.Primary,
		Payload: driver.CommandPayload{RateDegSec: rateX}})
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStartMotion, Axis: axis.Secondary,
		Payload: driver.CommandPayload{RateDegSec: rateY}})

	e.mu.Lock()
	e.lastRate = [2]float64{rateX, rateY}
	e.mu.Unlock()
}

// altazTick computes and re-issues the AltAz predictor rate (spec §4.6 "AltAz
// predictor tick"): single-entry, only while tracking is on, extrapolating the
// last-set RA/Dec target forward by the tick interval.
func (e *Engine) altazTick(ctx context.Context) {
	if !e.altazLock.CompareAndSwap(false, true) {
		return
	}
	defer e.altazLock.Store(false)

	if !e.IsTracking() {
		return
	}
	cfg := e.cfgFn()
	if cfg.Alignment != coord.AltAz {
		return
	}
	x, y, ok := e.predictedAxes(cfg.AltAzInterval, cfg)
	if !ok {
		return
	}

	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStartMotion, Axis: axis.Primary,
		Payload: driver.CommandPayload{RateDegSec: x}})
	e.q.GetCommandResult(driver.Command{Kind: driver.CmdStartMotion, Axis: axis.Secondary,
		Payload: driver.CommandPayload{RateDegSec: y}})
	_ = ctx
}

// ExtrapolateAxes implements slew.Predictor: it extrapolates the last-set
// RA/Dec target forward by loopTime and maps the result to mount-frame axis
// degrees, for use by the Slew Engine's precision phase when correcting an
// AltAz RaDec slew toward a moving target rather than a stale one (spec §4.5
// step 5). It reports ok=false outside AltAz alignment.
func (e *Engine) ExtrapolateAxes(loopTime time.Duration) (x, y float64, ok bool) {
	cfg := e.cfgFn()
	raHours, decDeg, targetOK := e.targetFn()
	if !targetOK || cfg.Alignment != coord.AltAz {
		return 0, 0, false
	}
	ctxCoord := coord.Context{Latitude: cfg.Latitude, Longitude: cfg.Longitude, Alignment: cfg.Alignment,
		PolarSide: cfg.PolarSide, Hemisphere: cfg.Hemisphere, HomeOffsetX: cfg.HomeOffsetX, HomeOffsetY: cfg.HomeOffsetY}
	ax, ay := coord.RadecToAxesXY(raHours, decDeg, coord.LST(time.Now().Add(loopTime), cfg.Longitude), ctxCoord)
	x, y = coord.AxesAppToMount(ax, ay, ctxCoord)
	return x, y, true
}

// predictedAxes returns the per-axis rates (degrees/sec) that carry the axes
// from the target RA/Dec's position now to its position at now+horizon (the
// required axis rate to track the target) rather than a raw re-solve, which
// altazTick sends as StartMotion rates, matching spec §4.6's "computes ...  the
// required instantaneous rate such that the mount tracks the current RA/Dec".
func (e *Engine) predictedAxes(horizon time.Duration, cfg Config) (rateX, rateY float64, ok bool) {
	raHours, decDeg, targetOK := e.targetFn()
	if !targetOK {
		return 0, 0, false
	}

	ctxCoord := coord.Context{
		Latitude:    cfg.Latitude,
		Longitude:   cfg.Longitude,
		Alignment:   cfg.Alignment,
		PolarSide:   cfg.PolarSide,
		Hemisphere:  cfg.Hemisphere,
		HomeOffsetX: cfg.HomeOffsetX,
		HomeOffsetY: cfg.HomeOffsetY,
	}
	now := time.Now()
	lstNow := coord.LST(now, cfg.Longitude)
	lstThen := coord.LST(now.Add(horizon), cfg.Longitude)

	x0, y0 := coord.RadecToAxesXY(raHours, decDeg, lstNow, ctxCoord)
	x1, y1 := coord.RadecToAxesXY(raHours, decDeg, lstThen, ctxCoord)

	secs := horizon.Seconds()
	if secs <= 0 {
		return 0, 0, false
	}
	rateX = coord.Range180(x1-x0) / secs
	rateY = coord.Range180(y1-y0) / secs
	return rateX, rateY, true
}

// ForceUpdate implements slew.PositionReader: a synchronous, immediate
// update_steps call outside the regular tick cadence (spec §5: the precision
// phase "forces an update, spins until set to true").
func (e *Engine) ForceUpdate(ctx context.Context) error {
	return e.updateSteps(ctx, e.cfgFn())
}

// AxesXY implements slew.PositionReader, returning the latest mount-frame
// degrees for both axes, the frame Goto targets are given in.
func (e *Engine) AxesXY() (x, y float64) {
	return e.pair.Primary.MountDegrees(), e.pair.Secondary.MountDegrees()
}

// IsFullStop implements slew.PositionReader by querying the driver directly
// (through the queue) for each axis's stopped flag - this needs to be
// authoritative at 100ms poll granularity, independent of the display tick.
func (e *Engine) IsFullStop() (primary, secondary bool) {
	rp := e.q.GetCommandResult(driver.Command{Kind: driver.CmdReadStopped, Axis: axis.Primary}).Wait()
	rs := e.q.GetCommandResult(driver.Command{Kind: driver.CmdReadStopped, Axis: axis.Secondary}).Wait()
	return rp.OK && rp.Value.Bool, rs.OK && rs.Value.Bool
}

// TimerOverruns returns the display tick's skipped-tick counter (spec §5
// "the implementation MUST NOT queue up missed ticks" - instrumented here for
// spec §8 invariant 3's testability).
func (e *Engine) TimerOverruns() uint64 {
	return e.timerOverruns.Load()
}

func (e *Engine) publishProps(status limits.Status) {
	if e.onProps == nil {
		return
	}
	e.mu.Lock()
	p := Properties{
		TrackingOn:    e.IsTracking(),
		SiderealTime:  e.lastLST,
		LHA:           e.lastLHA,
		IsHome:        e.isHome,
		EastOfPier:    e.eastOfPier,
		Limits:        status,
		TimerOverruns: e.timerOverruns.Load(),
		RateX:         e.lastRate[0],
		RateY:         e.lastRate[1],
	}
	e.mu.Unlock()
	e.onProps(p)
}
