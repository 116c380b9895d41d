package mount

import "github.com/draco-mount/alpaca-mount/internal/mtype"

// These are aliased from internal/mtype rather than defined here because the
// Slew Engine and Tracking Engine need them too, and both are sub-components
// the façade imports - keeping the definitions in mount would cycle.

type RunState = mtype.RunState

const (
	Disconnected = mtype.Disconnected
	Connected    = mtype.Connected
	Running      = mtype.Running
	Stopping     = mtype.Stopping
	Faulted      = mtype.Faulted
)

type SlewType = mtype.SlewType

const (
	SlewNone     = mtype.SlewNone
	SlewMoveAxis = mtype.SlewMoveAxis
	SlewPark     = mtype.SlewPark
	SlewHome     = mtype.SlewHome
	SlewRaDec    = mtype.SlewRaDec
	SlewAltAz    = mtype.SlewAltAz
)

type GuideDirection = mtype.GuideDirection

const (
	GuideRAPlus   = mtype.GuideRAPlus
	GuideRAMinus  = mtype.GuideRAMinus
	GuideDecPlus  = mtype.GuideDecPlus
	GuideDecMinus = mtype.GuideDecMinus
)

type Target = mtype.Target
type TargetKind = mtype.TargetKind

const (
	TargetRaDec    = mtype.TargetRaDec
	TargetAltAz    = mtype.TargetAltAz
	TargetHome     = mtype.TargetHome
	TargetPark     = mtype.TargetPark
	TargetMoveAxis = mtype.TargetMoveAxis
)

type CancellationHandles = mtype.CancellationHandles

type LimitStatus = mtype.LimitStatus
