// Package driver defines the hardware driver trait (spec §4.1) and its two
// implementations: Simulator (software model) and SkyWatcher (serial byte
// protocol). The rest of the core is generic over the Driver interface; only
// the Command Queue's worker goroutine ever calls into a Driver.
package driver

import (
	"time"

	"github.com/draco-mount/alpaca-mount/internal/axis"
	"github.com/draco-mount/alpaca-mount/internal/mounterr"
)

// CommandKind enumerates the wire-level operations a driver understands.
type CommandKind int

const (
	CmdStop CommandKind = iota
	CmdStopInstant
	CmdGoToTarget
	CmdSetPosition
	CmdStartMotion
	CmdReadPosition
	CmdReadPositionWithTime
	CmdReadStopped
	CmdReadFactorStep
	CmdReadStepsPerRev
	CmdPulseGuide
	CmdSetMonitorPulse
	CmdEmergencyStop
)

// CommandPayload carries the kind-specific arguments for a Command.
type CommandPayload struct {
	TargetDeg  float64 // GoToTarget, SetPosition
	RateDegSec float64 // StartMotion
	DurationMs uint32  // PulseGuide
	Direction  int     // PulseGuide: +1 or -1
}

// Command is a driver-issued request, as seen by the Command Queue.
type Command struct {
	ID      uint64
	Kind    CommandKind
	Axis    axis.Axis
	Payload CommandPayload
}

// ResultValue is the kind-specific return value of a Command.
type ResultValue struct {
	Float64 float64
	Int64   int64
	Bool    bool
	Instant time.Time
}

// CommandResult is delivered back to the caller through the Command Queue's
// future. Exactly one CommandResult is produced per Command (spec I6).
type CommandResult struct {
	ID         uint64
	OK         bool
	Value      ResultValue
	Err        *mounterr.Error
	Successful bool
}

// Capabilities are the hardware facts read once at Connect and cached by the
// façade/axis state.
type Capabilities struct {
	StepsPerRevolution     [2]int64
	FactorStep             [2]float64 // degrees per step
	WormStepsPerRevolution [2]float64
	StepsTimeFreq          [2]float64 // steps-per-second at 1x sidereal, driver-reported

	FirmwareVersion string
	MountName       string
	CanPPEC         bool
	CanHomeSensor   bool
	CanPolarLED     bool
}

// Driver is the trait every hardware backend implements (spec §4.1).
type Driver interface {
	// Initialize performs the handshake/capability read. Must be called before
	// any other method except IsInitialized.
	Initialize() error
	Shutdown()
	IsInitialized() bool

	// SendCommand is synchronous; only the Command Queue's worker goroutine
	// may call it.
	SendCommand(cmd Command) (ResultValue, error)

	Capabilities() Capabilities

	GetAxisPosition(a axis.Axis) (float64, bool)
	GetAxisPositionWithTime(a axis.Axis) (float64, time.Time, bool)
	SetAxisPosition(a axis.Axis, deg float64) error
	StartAxisMotion(a axis.Axis, rateDegSec float64) error
	StopAxis(a axis.Axis) error
	StopAxisInstant(a axis.Axis) error
	EmergencyStop() error

	IsMoving() bool
	IsAxisStopped(a axis.Axis) bool
	LastError() error
}
