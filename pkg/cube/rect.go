package cube

import "fmt"

// Rect is an axis-aligned region of interest in spatial pixel coordinates.
type Rect struct {
	MinX   int `yaml:"x" json:"x"`
	MinY   int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// MaxX is the last column covered by the rect.
func (r Rect) MaxX() int { return r.MinX + r.Width - 1 }

// MaxY is the last row covered by the rect.
func (r Rect) MaxY() int { return r.MinY + r.Height - 1 }

// Area is the number of pixels covered by the rect.
func (r Rect) Area() int { return r.Width * r.Height }

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.MinX, r.MinY, r.Width, r.Height)
}

// Validate checks r against a width x height spatial extent. An empty rect
// is reported before bounds.
func (r Rect) Validate(width, height int) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyRect, r)
	}
	if r.MinX < 0 || r.MinY < 0 || r.MaxX() >= width || r.MaxY() >= height {
		return fmt.Errorf("%w: %s exceeds %dx%d", ErrRectOutOfBounds, r, width, height)
	}
	return nil
}
