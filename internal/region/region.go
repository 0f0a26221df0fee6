// Package region holds the rectangle model for areas to redact. Coordinates
// are always in the original image's pixel space, never the display space.
package region

import (
	"strings"

	"github.com/google/uuid"

	"github.com/h-yaginuma0326/Qscan/internal/common"
)

// Region marks one rectangle to redact.
type Region struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewID returns a fresh region id: a 9-character token unique enough for a
// session. Ids are assigned once and never reused.
func NewID() string {
	tok := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "rect_" + tok[:9]
}

// New creates a committed region. Zero- or negative-area rectangles are
// rejected; transient draw rectangles never go through here.
func New(x, y, width, height float64) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, common.NewAppError("REGION_INVALID", "region must have positive area", nil)
	}
	return Region{ID: NewID(), X: x, Y: y, Width: width, Height: height}, nil
}

// Contains reports whether the point (in original-image pixels) falls inside
// the region's bounding box, edges inclusive.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Equal compares by id only; geometry may change across edits.
func (r Region) Equal(other Region) bool {
	return r.ID == other.ID
}
