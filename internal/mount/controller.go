package mount

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/align"
	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/common/service"
	"github.com/draco-mount/alpaca-mount/internal/coord"
	"github.com/draco-mount/alpaca-mount/internal/driver"
	"github.com/draco-mount/alpaca-mount/internal/limits"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
	"github.com/draco-mount/alpaca-mount/internal/mtype"
	"github.com/draco-mount/alpaca-mount/internal/queue"
	"github.com/draco-mount/alpaca-mount/internal/slew"
	"github.com/draco-mount/alpaca-mount/internal/tracking"
	"golang.org/x/sync/errgroup"
)

// Controller is the façade spec §4.7/§4.9 describes: it composes the driver,
// queue, axis state, Slew Engine, Tracking Engine, Limit Monitor and
// alignment adapter behind the public contract the Alpaca REST adapter calls
// into. Grounded on the teacher's mount.Simulator, which played the same
// composition-root role for a single hardcoded backend; this generalizes it
// over the Driver interface and the engines built fresh for this core.
type Controller struct {
	*service.BaseService

	cfgPtr atomic.Pointer[Config]

	drv   driver.Driver
	q     *queue.Queue
	pair  axis.Pair
	align align.Adapter

	slewEngine     *slew.Engine
	trackingEngine *tracking.Engine

	cancels mtype.CancellationHandles

	stateMu        sync.RWMutex
	state          RunState
	lastErr        *mounterr.Error
	atPark         bool
	limitViolation atomic.Bool

	targetMu sync.Mutex
	target   mtype.Target
	hasTgt   bool

	rateMu        sync.Mutex
	raRateOffset  float64 // arcsec/sec, Alpaca RightAscensionRate
	decRateOffset float64 // arcsec/sec, Alpaca DeclinationRate

	trackRate atomic.Int32 // ASCOM DriveRates: 0=Sidereal,1=Lunar,2=Solar,3=King
	atHome    atomic.Bool

	slewMu    sync.Mutex
	slewState SlewType

	onProps func(status Status)
}

// Status is the façade's published snapshot (spec §6.2 device properties):
// everything the Alpaca handlers and websocket hub read.
type Status struct {
	RunState       RunState
	SlewState      SlewType
	Tracking       bool
	AtPark         bool
	Connected      bool
	RaHours        float64
	DecDeg         float64
	AzDeg          float64
	AltDeg         float64
	SideOfPier     string
	AtHome         bool
	LastError      string
	Limits         limits.Status
	LimitViolation bool
	SiderealLST    float64
}

// New builds a Controller for cfg, constructing the driver/queue/engines it
// implies but not starting anything (spec §4.7 Connect/Start are separate
// steps).
func New(cfg Config, onProps func(Status)) *Controller {
	c := &Controller{
		BaseService: service.NewBaseService("mount"),
		align:       align.Identity{},
		state:       Disconnected,
	}
	c.cfgPtr.Store(&cfg)
	if onProps != nil {
		c.onProps = func(s Status) { onProps(s) }
	}
	c.buildForConfig(cfg)
	return c
}

func (c *Controller) buildForConfig(cfg Config) {
	switch cfg.MountKind {
	case KindSkyWatcher:
		c.drv = driver.NewSkyWatcher(cfg.Port, cfg.BaudRate)
	default:
		c.drv = driver.NewSimulator(2_000_000, cfg.MaxSlewRate)
	}
	c.q = queue.New(c.drv)
	c.pair = axis.NewPair(2_000_000, 2_000_000, 360.0/2_000_000)
	c.pair.Primary.SetOffsets(cfg.HomeAxisX, cfg.ParkAxes[0])
	c.pair.Secondary.SetOffsets(cfg.HomeAxisY, cfg.ParkAxes[1])

	isSim := cfg.MountKind == KindSimulator

	c.trackingEngine = tracking.New(c.pair, c.q, c.trackingConfig,
		c.currentTargetRaDec, c.slewEngineMoveRates, c.rateOffsets,
		c.onTrackProps, c.onLimitBreach, c.onParkAtLimit, c.onPECError)
	c.trackingEngine.SetHomeAxes(cfg.HomeAxisX, cfg.HomeAxisY)

	c.slewEngine = slew.New(c.q, c.trackingEngine, c.trackingEngine, &c.cancels,
		isSim, time.Duration(cfg.SlewSettleTimeSec*float64(time.Second)), cfg.GotoPrecision, c.onSlewState)
}

// Config returns the current immutable config snapshot.
func (c *Controller) Config() Config {
	return *c.cfgPtr.Load()
}

// SetConfig atomically swaps the config snapshot (spec §5 "MountConfig ...
// mutation creates a new snapshot"). Only a subset of fields can be changed
// while running; callers are expected to Stop/Start around a backend change.
func (c *Controller) SetConfig(cfg Config) {
	c.cfgPtr.Store(&cfg)
	c.trackingEngine.SetHomeAxes(cfg.HomeAxisX, cfg.HomeAxisY)
}

func (c *Controller) trackingConfig() tracking.Config {
	cfg := c.Config()
	return tracking.Config{
		Latitude:              cfg.Latitude,
		Longitude:             cfg.Longitude,
		Alignment:             cfg.Alignment,
		PolarSide:             cfg.PolarSide,
		Hemisphere:            cfg.Hemisphere,
		HomeOffsetX:           cfg.HomeAxisX,
		HomeOffsetY:           cfg.HomeAxisY,
		SiderealRateArcSecSec: cfg.SiderealRate,
		LunarRateArcSecSec:    cfg.LunarRate,
		SolarRateArcSecSec:    cfg.SolarRate,
		KingRateArcSecSec:     cfg.KingRate,
		DisplayInterval:       time.Duration(cfg.DisplayIntervalMs) * time.Millisecond,
		AltAzInterval:         time.Duration(cfg.AltAzTrackingIntervalMs) * time.Millisecond,
		CustomGearingEnabled:  cfg.CustomGearingEnabled,
		CustomGearingOffset:   cfg.CustomGearingOffset,
		StepsPerRev:           [2]int64{cfg.CustomStepsPerRevX, cfg.CustomStepsPerRevY},
		Limits: limits.Config{
			AxisLimitX:      cfg.AxisLimitX,
			AxisUpperLimitY: cfg.AxisUpperLimitY,
			AxisLowerLimitY: cfg.AxisLowerLimitY,
			HzTrackingLimit: cfg.HzTrackingLimit,
			PolarSide:       cfg.PolarSide,
			Alignment:       cfg.Alignment,
		},
		LimitTracking:   cfg.LimitTracking,
		LimitPark:       cfg.LimitPark,
		HzLimitTracking: cfg.HzLimitTracking,
	}
}

func (c *Controller) currentTargetRaDec() (raHours, decDeg float64, ok bool) {
	c.targetMu.Lock()
	defer c.targetMu.Unlock()
	if !c.hasTgt || c.target.Kind != mtype.TargetRaDec {
		return 0, 0, false
	}
	return c.target.RaHours, c.target.DecDeg, true
}

func (c *Controller) slewEngineMoveRates() (primary, secondary float64) {
	return c.slewEngine.MoveAxisRates()
}

func (c *Controller) rateOffsets() (raArcSecSec, decArcSecSec float64) {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	return c.raRateOffset, c.decRateOffset
}

// RateOffsets returns the current RightAscensionRate/DeclinationRate custom
// tracking offsets (spec §6.1), arcsec/sec.
func (c *Controller) RateOffsets() (raArcSecSec, decArcSecSec float64) {
	return c.rateOffsets()
}

// SetRateOffsets sets the custom RightAscensionRate/DeclinationRate offsets.
func (c *Controller) SetRateOffsets(raArcSecSec, decArcSecSec float64) {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	c.raRateOffset = raArcSecSec
	c.decRateOffset = decArcSecSec
}

func (c *Controller) onTrackProps(p tracking.Properties) {
	c.atHome.Store(p.IsHome)
	if c.onProps != nil {
		c.onProps(c.Status())
	}
}

// onLimitBreach latches a LimitViolation alert (spec §4.8/§7: "a hard error
// sets a latched alert flag") without forcing the mount through Stop/Start:
// the tracking engine has already turned tracking off on its own, so the
// façade only needs to record the alert for get_last_error()/Status to surface.
func (c *Controller) onLimitBreach(status limits.Status) {
	c.limitViolation.Store(true)
	c.stateMu.Lock()
	c.lastErr = mounterr.Domain(mounterr.CodeLimitViolation, "axis limit tripped")
	c.stateMu.Unlock()
	c.SetDegraded("axis limit tripped")
}

// onParkAtLimit drives the park-at-limit reaction spec §4.8 describes for
// limit_park: triggered at most once per sustained breach by the Tracking
// Engine, it runs the same async Park path a client-issued park would.
func (c *Controller) onParkAtLimit() {
	_ = c.Park(c.Config().ParkLimitName)
}

func (c *Controller) onPECError(err error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.lastErr = mounterr.Wrap(mounterr.KindDriver, mounterr.CodeMount, err)
}

func (c *Controller) onSlewState(s SlewType) {
	c.slewMu.Lock()
	c.slewState = s
	c.slewMu.Unlock()
	if c.onProps != nil {
		c.onProps(c.Status())
	}
}

// Connect initializes the driver, reads its capabilities into the axis pair,
// starts the queue, and performs the default-position write-back spec §4.7
// describes: read the axis position up to five times and, unless both axes
// are within 0.1deg of the configured park position (then the mount is marked
// parked), write the configured home position back to the driver so the
// mount reports somewhere sane on a cold start.
func (c *Controller) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state != Disconnected && c.state != Faulted {
		c.stateMu.Unlock()
		return mounterr.Driver(mounterr.CodeAlreadyConnected, "mount already connected")
	}
	c.stateMu.Unlock()
	c.limitViolation.Store(false)

	if err := c.drv.Initialize(); err != nil {
		c.setFaulted(mounterr.Wrap(mounterr.KindDriver, mounterr.CodeMountNotFound, err))
		return c.lastError()
	}

	caps := c.drv.Capabilities()
	cfg := c.Config()
	factorPrimary := caps.FactorStep[0]
	factorSecondary := caps.FactorStep[1]
	if factorPrimary == 0 {
		factorPrimary = 360.0 / float64(maxInt64(caps.StepsPerRevolution[0], 1))
	}
	if factorSecondary == 0 {
		factorSecondary = 360.0 / float64(maxInt64(caps.StepsPerRevolution[1], 1))
	}
	c.pair.Primary.SetConstants(caps.StepsPerRevolution[0], caps.WormStepsPerRevolution[0], factorPrimary)
	c.pair.Secondary.SetConstants(caps.StepsPerRevolution[1], caps.WormStepsPerRevolution[1], factorSecondary)
	c.pair.Primary.SetOffsets(cfg.HomeAxisX, cfg.ParkAxes[0])
	c.pair.Secondary.SetOffsets(cfg.HomeAxisY, cfg.ParkAxes[1])

	c.q.Start(nil)

	if err := c.writeBackDefaultPosition(ctx, cfg); err != nil {
		c.q.Stop()
		c.drv.Shutdown()
		c.setFaulted(err)
		return err
	}

	c.stateMu.Lock()
	c.state = Connected
	c.stateMu.Unlock()
	c.SetHealthy("connected")
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (c *Controller) writeBackDefaultPosition(ctx context.Context, cfg Config) error {
	var x, y float64
	var ok bool
	for i := 0; i < 5; i++ {
		var rx, ry driver.CommandResult
		fx := c.q.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Primary})
		fy := c.q.GetCommandResult(driver.Command{Kind: driver.CmdReadPosition, Axis: axis.Secondary})
		var g errgroup.Group
		g.Go(func() error { rx = fx.Wait(); return nil })
		g.Go(func() error { ry = fy.Wait(); return nil })
		_ = g.Wait()
		if rx.OK && ry.OK {
			x, y = float64(rx.Value.Int64)*c.pair.Primary.FactorStep(), float64(ry.Value.Int64)*c.pair.Secondary.FactorStep()
			ok = true
			break
		}
		select {
		case <-ctx.Done():
			return mounterr.New(mounterr.KindCancelled, mounterr.CodeCancelled, "connect cancelled")
		case <-time.After(100 * time.Millisecond):
		}
	}
	if !ok {
		return mounterr.Server(mounterr.CodeMount, "unable to read axis position after 5 attempts")
	}

	nearPark := math.Abs(coord.Range180(x-cfg.ParkAxes[0])) < 0.1 && math.Abs(coord.Range180(y-cfg.ParkAxes[1])) < 0.1
	if nearPark {
		c.stateMu.Lock()
		c.atPark = true
		c.stateMu.Unlock()
		return nil
	}

	rx := c.q.GetCommandResult(driver.Command{Kind: driver.CmdSetPosition, Axis: axis.Primary,
		Payload: driver.CommandPayload{TargetDeg: cfg.HomeAxisX}}).Wait()
	ry := c.q.GetCommandResult(driver.Command{Kind: driver.CmdSetPosition, Axis: axis.Secondary,
		Payload: driver.CommandPayload{TargetDeg: cfg.HomeAxisY}}).Wait()
	if !rx.OK || !ry.OK {
		return mounterr.Server(mounterr.CodeMount, "default position write-back failed")
	}
	return nil
}

// Disconnect stops the engines and shuts the driver down (spec §5 teardown
// order: cancel tokens, stop timers, validate axes, drain queue, close driver).
func (c *Controller) Disconnect() error {
	c.stateMu.Lock()
	if c.state == Disconnected {
		c.stateMu.Unlock()
		return nil
	}
	c.state = Stopping
	c.stateMu.Unlock()

	c.cancels.CancelAll()
	c.trackingEngine.Stop()
	c.q.Stop()
	c.drv.Shutdown()

	c.stateMu.Lock()
	c.state = Disconnected
	c.stateMu.Unlock()
	c.SetUnhealthy("disconnected")
	return nil
}

// Start transitions Connected -> Running, starting the Tracking Engine's
// timers (spec §4.7 state machine).
func (c *Controller) Start(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state != Connected {
		c.stateMu.Unlock()
		return mounterr.Domain(mounterr.CodeNotConnected, "mount not connected")
	}
	c.state = Running
	c.stateMu.Unlock()

	c.trackingEngine.Start(ctx)
	return nil
}

// Stop transitions Running -> Connected, stopping the Tracking Engine's
// timers but leaving the queue/driver alive.
func (c *Controller) Stop() error {
	c.stateMu.Lock()
	if c.state != Running {
		c.stateMu.Unlock()
		return nil
	}
	c.state = Connected
	c.stateMu.Unlock()

	c.trackingEngine.Stop()
	return nil
}

// Reset puts the controller back to Disconnected from any state and clears
// the last error and the limit alert; it does not stop the engines, the
// queue or the driver. Connect also accepts a Faulted controller directly.
func (c *Controller) Reset() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = Disconnected
	c.lastErr = nil
	c.limitViolation.Store(false)
}

// EmergencyStop triggers every cancellation source and issues an instant stop
// to the driver, without changing RunState (spec §4.1/§5 "any -> Faulted" is
// reserved for unrecoverable conditions; EmergencyStop is a recoverable halt).
func (c *Controller) EmergencyStop() error {
	c.cancels.CancelAll()
	res := c.q.GetCommandResult(driver.Command{Kind: driver.CmdEmergencyStop, Axis: axis.Primary}).Wait()
	if !res.OK {
		return res.Err
	}
	return nil
}

func (c *Controller) setFaulted(err *mounterr.Error) {
	c.stateMu.Lock()
	c.state = Faulted
	c.lastErr = err
	c.stateMu.Unlock()
	c.SetUnhealthy(err.Error())
}

func (c *Controller) lastError() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.lastErr == nil {
		return nil
	}
	return c.lastErr
}

func (c *Controller) GetLastError() error { return c.lastError() }

func (c *Controller) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state == Connected || c.state == Running
}

func (c *Controller) IsRunning() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state == Running
}

func (c *Controller) IsSlewing() bool {
	c.slewMu.Lock()
	defer c.slewMu.Unlock()
	return c.slewState != SlewNone
}

func (c *Controller) RunState() RunState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// runAsync is the "async entry point blocks the caller until the task has
// observably begun" primitive spec §5 requires: the goroutine closes started
// before doing any real work, so IsSlewing() is guaranteed true by the time
// the public method returns.
func (c *Controller) runAsync(slewType SlewType, fn func(ctx context.Context)) {
	started := make(chan struct{})
	c.slewMu.Lock()
	c.slewState = slewType
	c.slewMu.Unlock()
	go func() {
		close(started)
		fn(context.Background())
	}()
	<-started
}

// SlewToCoordinatesAsync maps ra/dec to axes through the Coordinate Engine and
// alignment adapter, then starts a background Goto (spec §4.5/§4.7).
func (c *Controller) SlewToCoordinatesAsync(raHours, decDeg float64) error {
	if !c.drv.IsInitialized() {
		return mounterr.Domain(mounterr.CodeNotConnected, "mount not connected")
	}
	cfg := c.Config()
	lst := coord.LST(time.Now(), cfg.Longitude)
	ctxCoord := cfg.CoordContext()
	x, y := coord.RadecToAxesXY(raHours, decDeg, lst, ctxCoord)
	synced := c.align.MapToSynced(align.Axes{Primary: x, Secondary: y})
	mx, my := coord.AxesAppToMount(synced.Primary, synced.Secondary, ctxCoord)

	c.targetMu.Lock()
	c.target = mtype.Target{Kind: mtype.TargetRaDec, RaHours: raHours, DecDeg: decDeg}
	c.hasTgt = true
	c.targetMu.Unlock()

	wasTracking := c.trackingEngine.IsTracking()
	c.runAsync(SlewRaDec, func(ctx context.Context) {
		_ = c.slewEngine.Goto(ctx, SlewRaDec, mx, my, wasTracking, func(on bool) {
			if on {
				c.trackingEngine.SetMode(tracking.ModeSidereal)
			}
		})
	})
	return nil
}

// SlewToAltAzAsync is the AltAz analogue of SlewToCoordinatesAsync.
func (c *Controller) SlewToAltAzAsync(azDeg, altDeg float64) error {
	if !c.drv.IsInitialized() {
		return mounterr.Domain(mounterr.CodeNotConnected, "mount not connected")
	}
	cfg := c.Config()
	ctxCoord := cfg.CoordContext()
	x, y := coord.AzAltToAxesXY(azDeg, altDeg, ctxCoord)
	synced := c.align.MapToSynced(align.Axes{Primary: x, Secondary: y})
	mx, my := coord.AxesAppToMount(synced.Primary, synced.Secondary, ctxCoord)

	c.targetMu.Lock()
	c.target = mtype.Target{Kind: mtype.TargetAltAz, AzDeg: azDeg, AltDeg: altDeg}
	c.hasTgt = true
	c.targetMu.Unlock()

	c.runAsync(SlewAltAz, func(ctx context.Context) {
		_ = c.slewEngine.Goto(ctx, SlewAltAz, mx, my, false, nil)
	})
	return nil
}

// SlewToTargetAsync slews to the previously latched TargetRA/TargetDec.
func (c *Controller) SlewToTargetAsync() error {
	ra, dec, ok := c.currentTargetRaDec()
	if !ok {
		return mounterr.Domain(mounterr.CodeInvalidData, "no target set")
	}
	return c.SlewToCoordinatesAsync(ra, dec)
}

// SyncToCoordinates records the given ra/dec as the mount's actual pointing
// without moving (spec §4.5 sync_to_coords).
func (c *Controller) SyncToCoordinates(raHours, decDeg float64) error {
	cfg := c.Config()
	lst := coord.LST(time.Now(), cfg.Longitude)
	ctxCoord := cfg.CoordContext()
	x, y := coord.RadecToAxesXY(raHours, decDeg, lst, ctxCoord)
	mx, my := coord.AxesAppToMount(x, y, ctxCoord)

	curX, curY := c.pair.Primary.MountDegrees(), c.pair.Secondary.MountDegrees()
	c.align.Sync(align.Axes{Primary: curX, Secondary: curY}, align.Axes{Primary: x, Secondary: y})
	return c.slewEngine.SyncToAxes(mx, my)
}

// SyncToTarget syncs to the previously latched target RA/Dec.
func (c *Controller) SyncToTarget() error {
	ra, dec, ok := c.currentTargetRaDec()
	if !ok {
		return mounterr.Domain(mounterr.CodeInvalidData, "no target set")
	}
	return c.SyncToCoordinates(ra, dec)
}

// AbortSlewAsync cancels any in-flight goto/move (spec §4.5 abort_slew).
func (c *Controller) AbortSlewAsync() error {
	return c.slewEngine.AbortSlew(context.Background())
}

// MoveAxis issues a continuous hand-controller-style move on one axis.
func (c *Controller) MoveAxis(a axis.Axis, rateDegSec float64) error {
	anyMoving, err := c.slewEngine.MoveAxis(a, rateDegSec)
	c.slewMu.Lock()
	if anyMoving {
		c.slewState = SlewMoveAxis
	} else {
		c.slewState = SlewNone
	}
	c.slewMu.Unlock()
	return err
}

// PulseGuide issues a guide pulse (spec §4.5 pulse_guide).
func (c *Controller) PulseGuide(dir mtype.GuideDirection, durationMs uint32) error {
	cfg := c.Config()
	minPulse := cfg.MinPulseRA
	if dir.Axis() == axis.Secondary {
		minPulse = cfg.MinPulseDec
	}
	return c.slewEngine.PulseGuide(context.Background(), dir, durationMs, cfg.St4GuideRate, minPulse)
}

// IsPulseGuiding reports whether a pulse guide is currently in flight on
// either axis, the Alpaca "IsPulseGuiding" property (spec §6.1).
func (c *Controller) IsPulseGuiding() bool {
	p := c.q.Properties()
	return p.IsPulseGuidingRA || p.IsPulseGuidingDec
}

// FindHome slews to the configured home position (spec §4.5 find_home).
func (c *Controller) FindHome() error {
	cfg := c.Config()
	c.runAsync(SlewHome, func(ctx context.Context) {
		_ = c.slewEngine.FindHome(ctx, cfg.HomeAxisX, cfg.HomeAxisY)
	})
	return nil
}

// Park slews to the named park position, or the default if name is empty
// (spec §4.5 park(name)).
func (c *Controller) Park(name string) error {
	cfg := c.Config()
	pos, ok := cfg.ParkPositionByName(name)
	if !ok {
		return mounterr.Domain(mounterr.CodeInvalidData, "unknown park position %q", name)
	}
	c.runAsync(SlewPark, func(ctx context.Context) {
		err := c.slewEngine.Park(ctx, pos.AxisX, pos.AxisY)
		if err == nil {
			c.stateMu.Lock()
			c.atPark = true
			c.stateMu.Unlock()
		}
	})
	return nil
}

// SetPark records the mount's current axis position as the default park
// location (spec §6.1 setpark: "sets the park position to the current
// position of the telescope"), replacing ParkAxes in the config snapshot.
func (c *Controller) SetPark() error {
	x := c.pair.Primary.MountDegrees()
	y := c.pair.Secondary.MountDegrees()
	cfg := c.Config()
	cfg.ParkAxes = [2]float64{x, y}
	c.SetConfig(cfg)
	return nil
}

// Unpark clears the parked flag (spec §4.5 "unpark clears at_park").
func (c *Controller) Unpark() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.atPark {
		return mounterr.Domain(mounterr.CodeNotParked, "mount is not parked")
	}
	c.atPark = false
	return nil
}

func (c *Controller) IsAtPark() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.atPark
}

// SetTarget latches TargetRA/TargetDec for a subsequent SlewToTargetAsync
// /SyncToTarget (spec §6.2 TargetRightAscension/TargetDeclination setters).
func (c *Controller) SetTarget(raHours, decDeg float64) {
	c.targetMu.Lock()
	defer c.targetMu.Unlock()
	c.target = mtype.Target{Kind: mtype.TargetRaDec, RaHours: raHours, DecDeg: decDeg}
	c.hasTgt = true
}

func (c *Controller) Target() (raHours, decDeg float64, ok bool) {
	return c.currentTargetRaDec()
}

// SetTracking turns the Tracking Engine's equatorial/AltAz rate composition
// on or off (spec §4.6/§6.2 Tracking property setter). When turned on it
// drives at whatever rate TrackingRate last selected (Sidereal by default).
func (c *Controller) SetTracking(on bool) {
	if on {
		c.trackingEngine.SetMode(driveRateToMode(DriveRate(c.trackRate.Load())))
	} else {
		c.trackingEngine.SetMode(tracking.ModeOff)
	}
}

func (c *Controller) IsTracking() bool {
	return c.trackingEngine.IsTracking()
}

// DriveRate mirrors the ASCOM DriveRates enum (spec §6.1 trackingrate).
type DriveRate int32

const (
	DriveSidereal DriveRate = 0
	DriveLunar    DriveRate = 1
	DriveSolar    DriveRate = 2
	DriveKing     DriveRate = 3
)

func driveRateToMode(r DriveRate) tracking.Mode {
	switch r {
	case DriveLunar:
		return tracking.ModeLunar
	case DriveSolar:
		return tracking.ModeSolar
	case DriveKing:
		return tracking.ModeKing
	default:
		return tracking.ModeSidereal
	}
}

// TrackingRate returns the currently selected DriveRate (spec §6.1
// trackingrate getter). It reflects the last SetTrackingRate call regardless
// of whether tracking is currently on.
func (c *Controller) TrackingRate() DriveRate {
	return DriveRate(c.trackRate.Load())
}

// SetTrackingRate selects which rate Tracking uses while on (spec §6.1
// trackingrate setter); if tracking is already running it is re-armed at the
// new rate immediately rather than waiting for the next Tracking on/off
// transition.
func (c *Controller) SetTrackingRate(r DriveRate) error {
	switch r {
	case DriveSidereal, DriveLunar, DriveSolar, DriveKing:
	default:
		return mounterr.Domain(mounterr.CodeInvalidData, "unsupported tracking rate %d", r)
	}
	c.trackRate.Store(int32(r))
	if c.trackingEngine.IsTracking() {
		c.trackingEngine.SetMode(driveRateToMode(r))
	}
	return nil
}

// Status assembles the façade's published snapshot from its sub-components.
func (c *Controller) Status() Status {
	cfg := c.Config()
	px, py := c.pair.Primary.Snapshot().DegreesApp, c.pair.Secondary.Snapshot().DegreesApp
	unsynced := c.align.MapToUnsynced(align.Axes{Primary: px, Secondary: py})
	lst := coord.LST(time.Now(), cfg.Longitude)
	ra, dec := coord.AxesXYToRadec(unsynced.Primary, unsynced.Secondary, lst, cfg.CoordContext())
	az, alt := coord.AxesXYToAzAlt(unsynced.Primary, unsynced.Secondary, cfg.CoordContext())

	rawX, rawY := c.pair.Primary.MountDegrees(), c.pair.Secondary.MountDegrees()
	limStatus := limits.Check(rawX, rawY, limits.Config{
		AxisLimitX:      cfg.AxisLimitX,
		AxisUpperLimitY: cfg.AxisUpperLimitY,
		AxisLowerLimitY: cfg.AxisLowerLimitY,
		HzTrackingLimit: cfg.HzTrackingLimit,
		PolarSide:       cfg.PolarSide,
		Alignment:       cfg.Alignment,
	})

	sideOfPier := "pierEast"
	if coord.RaToHA(ra, lst) >= 0 {
		sideOfPier = "pierWest"
	}

	errMsg := ""
	if err := c.lastError(); err != nil {
		errMsg = err.Error()
	}

	return Status{
		RunState:       c.RunState(),
		SlewState:      c.currentSlewState(),
		Tracking:       c.IsTracking(),
		AtPark:         c.IsAtPark(),
		Connected:      c.IsConnected(),
		RaHours:        ra,
		DecDeg:         dec,
		AzDeg:          az,
		AltDeg:         alt,
		SideOfPier:     sideOfPier,
		AtHome:         c.atHome.Load(),
		LastError:      errMsg,
		Limits:         limStatus,
		LimitViolation: c.limitViolation.Load(),
		SiderealLST:    lst,
	}
}

func (c *Controller) currentSlewState() SlewType {
	c.slewMu.Lock()
	defer c.slewMu.Unlock()
	return c.slewState
}
