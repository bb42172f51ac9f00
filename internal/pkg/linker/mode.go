package linker

import (
	"fmt"
	"strings"
)

// Mode selects which driver(s) a linker routes its operations to.
type Mode int

// Execution modes. VirtualMode is the zero value.
const (
	VirtualMode Mode = iota
	ActualMode
	DigitalTwinMode
)

func (m Mode) String() string {
	switch m {
	case VirtualMode:
		return "VirtualMode"
	case ActualMode:
		return "ActualMode"
	case DigitalTwinMode:
		return "DigitalTwinMode"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Defined reports whether m is one of the three execution modes.
func (m Mode) Defined() bool {
	return m >= VirtualMode && m <= DigitalTwinMode
}

// ParseMode accepts the mode names used in workcell files, case-insensitively,
// with or without the "Mode" suffix.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "mode")
	switch name {
	case "virtual", "":
		return VirtualMode, nil
	case "actual":
		return ActualMode, nil
	case "digitaltwin", "twin":
		return DigitalTwinMode, nil
	}
	return Mode(-1), fmt.Errorf("%q: %w", s, ErrUndefinedMode)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
