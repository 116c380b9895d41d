package mtype

import (
	"context"
	"sync"

	"github.com/draco-mount/alpaca-mount/internal/axis"
)

// RunState is the façade's top-level state machine (spec §4.7).
type RunState int

const (
	Disconnected RunState = iota
	Connected
	Running
	Stopping
	Faulted
)

func (s RunState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// SlewType is both the family of slew target and the Slew Engine's current
// state (spec §3).
type SlewType int

const (
	SlewNone SlewType = iota
	SlewMoveAxis
	SlewPark
	SlewHome
	SlewRaDec
	SlewAltAz
)

func (s SlewType) String() string {
	switch s {
	case SlewNone:
		return "None"
	case SlewMoveAxis:
		return "MoveAxis"
	case SlewPark:
		return "Park"
	case SlewHome:
		return "Home"
	case SlewRaDec:
		return "RaDec"
	case SlewAltAz:
		return "AltAz"
	default:
		return "Unknown"
	}
}

// GuideDirection is a pulse-guide direction on one axis.
type GuideDirection int

const (
	GuideRAPlus GuideDirection = iota
	GuideRAMinus
	GuideDecPlus
	GuideDecMinus
)

// Axis returns which physical axis a guide direction drives.
func (d GuideDirection) Axis() axis.Axis {
	if d == GuideRAPlus || d == GuideRAMinus {
		return axis.Primary
	}
	return axis.Secondary
}

// Sign returns +1/-1 for the direction's sense along its axis.
func (d GuideDirection) Sign() float64 {
	switch d {
	case GuideRAPlus, GuideDecPlus:
		return 1
	default:
		return -1
	}
}

// Target is the tagged destination variant a slew operates on (spec §3).
type Target struct {
	Kind TargetKind

	RaHours float64
	DecDeg  float64

	AzDeg  float64
	AltDeg float64

	ParkName string

	MoveAxis   axis.Axis
	MoveRateDS float64 // degrees/sec, continuous
}

type TargetKind int

const (
	TargetRaDec TargetKind = iota
	TargetAltAz
	TargetHome
	TargetPark
	TargetMoveAxis
)

// SlewTypeFor maps a Target to the SlewType it drives.
func SlewTypeFor(t Target) SlewType {
	switch t.Kind {
	case TargetRaDec:
		return SlewRaDec
	case TargetAltAz:
		return SlewAltAz
	case TargetHome:
		return SlewHome
	case TargetPark:
		return SlewPark
	case TargetMoveAxis:
		return SlewMoveAxis
	default:
		return SlewNone
	}
}

// CancellationHandles holds the four independent cancellation sources spec §5
// names: goto, pulse-guide RA, pulse-guide Dec, hand-controller pulse-guide.
// Each new operation replaces its own source; the replaced source's owner
// observes cancellation at its next poll point.
type CancellationHandles struct {
	mu sync.Mutex

	goTo          context.CancelFunc
	pulseGuideRA  context.CancelFunc
	pulseGuideDec context.CancelFunc
	hcPulseGuide  context.CancelFunc
}

// NewGoto cancels any prior goto token and returns a context for the new one.
func (h *CancellationHandles) NewGoto(parent context.Context) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.goTo != nil {
		h.goTo()
	}
	ctx, cancel := context.WithCancel(parent)
	h.goTo = cancel
	return ctx
}

// CancelGoto cancels the current goto token, if any (used by AbortSlew).
func (h *CancellationHandles) CancelGoto() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.goTo != nil {
		h.goTo()
	}
}

// NewPulseGuide cancels any prior token for the given axis direction's guide
// source and returns a context for the new pulse.
func (h *CancellationHandles) NewPulseGuide(parent context.Context, a axis.Axis) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx, cancel := context.WithCancel(parent)
	if a == axis.Primary {
		if h.pulseGuideRA != nil {
			h.pulseGuideRA()
		}
		h.pulseGuideRA = cancel
	} else {
		if h.pulseGuideDec != nil {
			h.pulseGuideDec()
		}
		h.pulseGuideDec = cancel
	}
	return ctx
}

// NewHCPulseGuide cancels any prior hand-controller pulse token and returns a
// context for the new one.
func (h *CancellationHandles) NewHCPulseGuide(parent context.Context) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hcPulseGuide != nil {
		h.hcPulseGuide()
	}
	ctx, cancel := context.WithCancel(parent)
	h.hcPulseGuide = cancel
	return ctx
}

// CancelAll triggers every cancellation source at once (spec §5 EmergencyStop
// "triggers all sources").
func (h *CancellationHandles) CancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range []context.CancelFunc{h.goTo, h.pulseGuideRA, h.pulseGuideDec, h.hcPulseGuide} {
		if c != nil {
			c()
		}
	}
}

// LimitStatus is the four-boolean snapshot the Limit Monitor publishes each
// tick (spec §3).
type LimitStatus struct {
	AtLowerX bool
	AtUpperX bool
	AtLowerY bool
	AtUpperY bool
}

// Breached reports whether any limit is currently tripped.
func (s LimitStatus) Breached() bool {
	return s.AtLowerX || s.AtUpperX || s.AtLowerY || s.AtUpperY
}
