package cube

import (
	"fmt"
	"strings"
)

// Layout assigns the three physical axes of a cube to the semantic roles
// height, width and channel. The letters name the role of physical axes
// 0, 1 and 2 in that order: CHW means axis 0 is the channel axis.
type Layout int

const (
	Auto Layout = iota
	HWC
	HCW
	CHW
	CWH
	WHC
	WCH
)

// Layouts lists the concrete layouts, Auto excluded.
var Layouts = []Layout{HWC, HCW, CHW, CWH, WHC, WCH}

// Axes holds the physical axis index of each semantic role.
type Axes struct {
	Channel int
	Height  int
	Width   int
}

var layoutTable = map[Layout]Axes{
	HWC: {Height: 0, Width: 1, Channel: 2},
	HCW: {Height: 0, Channel: 1, Width: 2},
	CHW: {Channel: 0, Height: 1, Width: 2},
	CWH: {Channel: 0, Width: 1, Height: 2},
	WHC: {Width: 0, Height: 1, Channel: 2},
	WCH: {Width: 0, Channel: 1, Height: 2},
}

func (l Layout) String() string {
	switch l {
	case Auto:
		return "auto"
	case HWC:
		return "HWC"
	case HCW:
		return "HCW"
	case CHW:
		return "CHW"
	case CWH:
		return "CWH"
	case WHC:
		return "WHC"
	case WCH:
		return "WCH"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout parses "auto" or a permutation of the letters H, W and C.
func ParseLayout(s string) (Layout, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "AUTO" {
		return Auto, nil
	}
	for _, l := range Layouts {
		if l.String() == s {
			return l, nil
		}
	}
	return Auto, fmt.Errorf("unknown layout %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layout) UnmarshalText(text []byte) error {
	parsed, err := ParseLayout(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Resolve maps layout onto the physical dimensions dims.
//
// Concrete layouts are a fixed permutation. Auto takes the smallest
// dimension as the channel axis, breaking ties by the lowest axis index, and
// assigns the remaining axes to height and width in physical order.
// Two-dimensional cubes have no channel axis and always fail with
// ErrLayoutUnavailable.
func Resolve(layout Layout, dims []int) (Axes, error) {
	if len(dims) != 3 {
		return Axes{}, fmt.Errorf("%w: %s on %d-D cube", ErrLayoutUnavailable, layout, len(dims))
	}
	if layout != Auto {
		axes, ok := layoutTable[layout]
		if !ok {
			return Axes{}, fmt.Errorf("%w: %s", ErrLayoutUnavailable, layout)
		}
		return axes, nil
	}

	channel := 0
	for i := 1; i < 3; i++ {
		if dims[i] < dims[channel] {
			channel = i
		}
	}
	spatial := make([]int, 0, 2)
	for i := 0; i < 3; i++ {
		if i != channel {
			spatial = append(spatial, i)
		}
	}
	return Axes{Channel: channel, Height: spatial[0], Width: spatial[1]}, nil
}

// LayoutOf returns the concrete layout whose table entry equals axes.
func LayoutOf(axes Axes) Layout {
	for _, l := range Layouts {
		if layoutTable[l] == axes {
			return l
		}
	}
	return Auto
}
