package driver

import (
	"bufio"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
)

const (
	skyWatcherMaxRetries = 3
	skyWatcherIOTimeout  = 500 * time.Millisecond
)

// SkyWatcher drives a SkyWatcher-protocol mount over RS-232/USB-serial at
// 9600 8N1 (spec §6.2). Wire access is serialized through wireMu - a mutex
// distinct from the Command Queue's own serialization - so that, e.g., a
// voltage-telemetry poll never interleaves its request/response pair with a
// goto command's. Grounded on banshee-data-velocity.report's internal/serialmux
// (single writer mutex + go.bug.st/serial), generalized from line-oriented
// telemetry to SkyWatcher's colon-framed request/response protocol.
type SkyWatcher struct {
	portName string
	baudRate int

	wireMu sync.Mutex
	port   serial.Port
	reader *bufio.Reader

	mu          sync.Mutex
	initialized bool
	lastErr     error
	caps        Capabilities

	lowVoltageEvent func()
}

// NewSkyWatcher constructs a driver bound to the given serial port path. Baud
// defaults to 9600 per spec §6.2 when zero.
func NewSkyWatcher(portName string, baudRate int) *SkyWatcher {
	if baudRate <= 0 {
		baudRate = 9600
	}
	return &SkyWatcher{portName: portName, baudRate: baudRate}
}

// OnLowVoltage registers the low-voltage telemetry hook (spec §4.1).
func (d *SkyWatcher) OnLowVoltage(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lowVoltageEvent = fn
}

func (d *SkyWatcher) Initialize() error {
	mode := &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.portName, mode)
	if err != nil {
		return mounterr.Wrap(mounterr.KindDriver, mounterr.CodeMountNotFound, err)
	}
	d.wireMu.Lock()
	d.port = port
	d.reader = bufio.NewReader(port)
	d.wireMu.Unlock()

	caps, err := d.handshake()
	if err != nil {
		port.Close()
		return err
	}

	d.mu.Lock()
	d.caps = caps
	d.initialized = true
	d.mu.Unlock()
	return nil
}

// handshake exchanges the version/capability commands spec §4.7 Connect
// requires before the façade will trust the driver: firmware version,
// steps-per-revolution, steps-per-worm, step-time-frequency, per axis.
func (d *SkyWatcher) handshake() (Capabilities, error) {
	var caps Capabilities

	version, err := d.transact('e', swAxis1, "")
	if err != nil {
		return caps, mounterr.Wrap(mounterr.KindDriver, mounterr.CodeMountNotFound, err)
	}
	caps.FirmwareVersion = version
	caps.MountName = "SkyWatcher"

	for i, code := range []swAxisCode{swAxis1, swAxis2} {
		stepsResp, err := d.transact('a', code, "")
		if err != nil {
			return caps, mounterr.Wrap(mounterr.KindDriver, mounterr.CodeNoResponseAxis1, err).WithAxis(axisName(i))
		}
		steps, err := hexToInt24(stepsResp)
		if err != nil {
			return caps, err
		}
		caps.StepsPerRevolution[i] = steps

		wormResp, err := d.transact('s', code, "")
		if err != nil {
			return caps, mounterr.Wrap(mounterr.KindDriver, mounterr.CodeNoResponseAxis1, err).WithAxis(axisName(i))
		}
		worm, err := hexToInt24(wormResp)
		if err != nil {
			return caps, err
		}
		caps.WormStepsPerRevolution[i] = float64(worm)

		freqResp, err := d.transact('b', code, "")
		if err != nil {
			return caps, mounterr.Wrap(mounterr.KindDriver, mounterr.CodeNoResponseAxis1, err).WithAxis(axisName(i))
		}
		freq, err := hexToInt24(freqResp)
		if err != nil {
			return caps, err
		}
		caps.StepsTimeFreq[i] = float64(freq)
		if steps > 0 {
			caps.FactorStep[i] = 360.0 / float64(steps)
		}
	}
	return caps, nil
}

func axisName(idx int) string {
	if idx == 0 {
		return "primary"
	}
	return "secondary"
}

// transact writes one framed command and reads one framed response, retrying
// transient timeouts for up to skyWatcherMaxRetries attempts before surfacing
// ErrTooManyRetries (spec §4.1, §7).
func (d *SkyWatcher) transact(cmdLetter byte, ax swAxisCode, payload string) (string, error) {
	req := buildCommand(cmdLetter, ax, payload)

	var lastErr error
	for attempt := 0; attempt < skyWatcherMaxRetries; attempt++ {
		resp, err := d.writeRead(req)
		if err == nil {
			payload, ok, perr := parseResponse(resp)
			if perr != nil {
				return "", perr
			}
			if ok {
				return payload, nil
			}
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond) // small fixed backoff
	}
	return "", mounterr.Driver(mounterr.CodeTooManyRetries, "skywatcher: exhausted %d retries: %v", skyWatcherMaxRetries, lastErr)
}

func (d *SkyWatcher) writeRead(req string) (string, error) {
	d.wireMu.Lock()
	defer d.wireMu.Unlock()

	if d.port == nil {
		return "", mounterr.Driver(mounterr.CodeNotConnected, "skywatcher: port not open")
	}
	d.port.SetReadTimeout(skyWatcherIOTimeout)

	if _, err := d.port.Write([]byte(req)); err != nil {
		return "", mounterr.Wrap(mounterr.KindDriver, mounterr.CodeSerialFailed, err)
	}
	line, err := d.reader.ReadString('\r')
	if err != nil {
		return "", mounterr.Wrap(mounterr.KindTransient, mounterr.CodeTransientTimeout, err)
	}
	return line, nil
}

func (d *SkyWatcher) Shutdown() {
	d.wireMu.Lock()
	if d.port != nil {
		d.port.Close()
		d.port = nil
	}
	d.wireMu.Unlock()

	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
}

func (d *SkyWatcher) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

func (d *SkyWatcher) Capabilities() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *SkyWatcher) SendCommand(cmd Command) (ResultValue, error) {
	ax := axisCodeFor(axisIdx(cmd.Axis))
	switch cmd.Kind {
	case CmdGoToTarget:
		steps := d.degToSteps(cmd.Axis, cmd.Payload.TargetDeg)
		_, err := d.transact('S', ax, int24ToHex(steps))
		if err == nil {
			_, err = d.transact('J', ax, "") // start motion toward target
		}
		return ResultValue{}, d.recordErr(err)
	case CmdSetPosition:
		steps := d.degToSteps(cmd.Axis, cmd.Payload.TargetDeg)
		_, err := d.transact('E', ax, int24ToHex(steps))
		return ResultValue{}, d.recordErr(err)
	case CmdStartMotion:
		_, err := d.transact('I', ax, rateToHex(cmd.Payload.RateDegSec))
		if err == nil {
			_, err = d.transact('J', ax, "")
		}
		return ResultValue{}, d.recordErr(err)
	case CmdStop:
		_, err := d.transact('K', ax, "")
		return ResultValue{}, d.recordErr(err)
	case CmdStopInstant:
		_, err := d.transact('L', ax, "")
		return ResultValue{}, d.recordErr(err)
	case CmdReadPosition:
		resp, err := d.transact('j', ax, "")
		if err != nil {
			return ResultValue{}, d.recordErr(err)
		}
		steps, err := hexToInt24(resp)
		if err != nil {
			return ResultValue{}, d.recordErr(err)
		}
		return ResultValue{Float64: d.stepsToDeg(cmd.Axis, steps), Int64: steps}, nil
	case CmdReadPositionWithTime:
		now := time.Now()
		resp, err := d.transact('j', ax, "")
		if err != nil {
			return ResultValue{}, d.recordErr(err)
		}
		steps, err := hexToInt24(resp)
		if err != nil {
			return ResultValue{}, d.recordErr(err)
		}
		return ResultValue{Float64: d.stepsToDeg(cmd.Axis, steps), Int64: steps, Instant: now}, nil
	case CmdReadStopped:
		resp, err := d.transact('f', ax, "")
		if err != nil {
			return ResultValue{}, d.recordErr(err)
		}
		return ResultValue{Bool: len(resp) > 0 && resp[0] == '1'}, nil
	case CmdEmergencyStop:
		return ResultValue{}, d.EmergencyStop()
	case CmdPulseGuide:
		rate := cmd.Payload.RateDegSec * float64(cmd.Payload.Direction)
		_, err := d.transact('I', ax, rateToHex(rate))
		if err == nil {
			_, err = d.transact('J', ax, "")
		}
		return ResultValue{}, d.recordErr(err)
	default:
		return ResultValue{}, mounterr.Driver(mounterr.CodeUnimplemented, "skywatcher: unsupported command kind %d", cmd.Kind)
	}
}

func (d *SkyWatcher) recordErr(err error) error {
	if err != nil {
		d.mu.Lock()
		d.lastErr = err
		d.mu.Unlock()
	}
	return err
}

func (d *SkyWatcher) degToSteps(a axis.Axis, deg float64) int64 {
	f := d.Capabilities().FactorStep[axisIdx(a)]
	if f == 0 {
		return 0
	}
	return int64(deg/f + 0.5)
}

func (d *SkyWatcher) stepsToDeg(a axis.Axis, steps int64) float64 {
	f := d.Capabilities().FactorStep[axisIdx(a)]
	return float64(steps) * f
}

// rateToHex encodes a rate command. The real SkyWatcher protocol encodes
// direction via a high-nibble flag and speed via a step-period; this
// implementation keeps the same "signed magnitude, byte-swapped hex" framing
// as position counts for internal consistency between Simulator and
// SkyWatcher command plumbing.
func rateToHex(rateDegSec float64) string {
	scaled := int64(rateDegSec * 1000)
	return int24ToHex(scaled)
}

func (d *SkyWatcher) GetAxisPosition(a axis.Axis) (float64, bool) {
	rv, err := d.SendCommand(Command{Kind: CmdReadPosition, Axis: a})
	if err != nil {
		return 0, false
	}
	return rv.Float64, true
}

func (d *SkyWatcher) GetAxisPositionWithTime(a axis.Axis) (float64, time.Time, bool) {
	rv, err := d.SendCommand(Command{Kind: CmdReadPositionWithTime, Axis: a})
	if err != nil {
		return 0, time.Time{}, false
	}
	return rv.Float64, rv.Instant, true
}

func (d *SkyWatcher) SetAxisPosition(a axis.Axis, deg float64) error {
	_, err := d.SendCommand(Command{Kind: CmdSetPosition, Axis: a, Payload: CommandPayload{TargetDeg: deg}})
	return err
}

func (d *SkyWatcher) StartAxisMotion(a axis.Axis, rateDegSec float64) error {
	_, err := d.SendCommand(Command{Kind: CmdStartMotion, Axis: a, Payload: CommandPayload{RateDegSec: rateDegSec}})
	return err
}

func (d *SkyWatcher) StopAxis(a axis.Axis) error {
	_, err := d.SendCommand(Command{Kind: CmdStop, Axis: a})
	return err
}

func (d *SkyWatcher) StopAxisInstant(a axis.Axis) error {
	_, err := d.SendCommand(Command{Kind: CmdStopInstant, Axis: a})
	return err
}

func (d *SkyWatcher) EmergencyStop() error {
	_, err1 := d.transact('L', swAxis1, "")
	_, err2 := d.transact('L', swAxis2, "")
	if err1 != nil {
		return d.recordErr(err1)
	}
	return d.recordErr(err2)
}

func (d *SkyWatcher) IsMoving() bool {
	return !d.IsAxisStopped(axis.Primary) || !d.IsAxisStopped(axis.Secondary)
}

func (d *SkyWatcher) IsAxisStopped(a axis.Axis) bool {
	rv, err := d.SendCommand(Command{Kind: CmdReadStopped, Axis: a})
	if err != nil {
		return false
	}
	return rv.Bool
}

func (d *SkyWatcher) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func axisIdx(a axis.Axis) int {
	if a == axis.Primary {
		return 0
	}
	return 1
}

var _ Driver = (*SkyWatcher)(nil)
var _ Driver = (*Simulator)(nil)
