package tick

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode selects which clock drives time-dependent systems.
type Mode int32

const (
	// RealTime advances systems by frame time.
	RealTime Mode = iota
	// TurnBased advances systems once per turn end.
	TurnBased
)

// String returns the config spelling of the mode.
func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case TurnBased:
		return "turn_based"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of String; "turnbased" and "turn-based" are accepted too.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real_time", "real-time", "":
		return RealTime, nil
	case "turn_based", "turnbased", "turn-based", "turns":
		return TurnBased, nil
	}
	return RealTime, fmt.Errorf("unknown mode %q", s)
}

// ModeSource reports the current execution mode.
type ModeSource interface {
	Mode() Mode
}

// ModeFlag is the ambient execution mode. It may be read from any goroutine.
type ModeFlag struct {
	v atomic.Int32
}

// NewModeFlag returns a flag set to m.
func NewModeFlag(m Mode) *ModeFlag {
	f := &ModeFlag{}
	f.Set(m)
	return f
}

// Mode implements ModeSource.
func (f *ModeFlag) Mode() Mode { return Mode(f.v.Load()) }

// Set switches the mode and returns the previous one.
func (f *ModeFlag) Set(m Mode) Mode { return Mode(f.v.Swap(int32(m))) }

// Fixed is a ModeSource that never changes.
type Fixed Mode

// Mode implements ModeSource.
func (f Fixed) Mode() Mode { return Mode(f) }
