package catalog

import "fmt"

// Backend is the preferred execution backend of a model. The zero value
// expresses no preference and lets the runtime decide.
type Backend int

const (
	BackendAuto Backend = iota
	BackendDefault
	BackendAccelerated
)

func (b Backend) String() string {
	switch b {
	case BackendAuto:
		return ""
	case BackendDefault:
		return "default"
	case BackendAccelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	switch b {
	case BackendAuto, BackendDefault, BackendAccelerated:
		return []byte(b.String()), nil
	}
	return nil, fmt.Errorf("unknown backend %d", int(b))
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepted values are
// "", "auto", "default", "cpu", "accelerated" and "gpu".
func (b *Backend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "auto":
		*b = BackendAuto
	case "default", "cpu":
		*b = BackendDefault
	case "accelerated", "gpu":
		*b = BackendAccelerated
	default:
		return fmt.Errorf("unknown backend %q", string(text))
	}
	return nil
}
