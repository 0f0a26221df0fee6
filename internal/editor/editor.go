// Package editor translates pointer input on a scaled on-screen raster into
// region mutations in original-image coordinates. The geometry is pure and
// rendering-free; the overlay projection lives in render.go.
package editor

import (
	"math"

	"github.com/h-yaginuma0326/Qscan/internal/region"
)

// Regions smaller than this (in original-image pixels) are treated as
// accidental clicks and discarded on pointer-up.
const minRegionSize = 5

// Patch is a partial region update; nil fields are left unchanged.
type Patch struct {
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
}

// Store is the write interface to the authoritative RegionSet. The editor
// owns no region state itself; it only reads and writes through here.
type Store interface {
	Regions() []region.Region
	AddRegion(r region.Region)
	UpdateRegion(id string, patch Patch)
	RemoveRegion(id string)
}

// Point is a position in original-image pixel coordinates.
type Point struct {
	X, Y float64
}

// Editor tracks one in-progress gesture (a draw or a drag) against a Store.
type Editor struct {
	store    Store
	scale    float64
	readOnly bool

	drawing bool
	anchor  Point

	dragging bool
	dragFrom Point

	last Point // last observed pointer position, image coordinates

	selectedID string
}

// New creates an editor for an image displayed at containerWidth on-screen
// pixels wide. All pointer coordinates handed to the editor are display-space
// and are divided by the resulting scale before touching region geometry.
func New(store Store, containerWidth, naturalWidth float64, readOnly bool) *Editor {
	scale := 1.0
	if naturalWidth > 0 && containerWidth > 0 {
		scale = containerWidth / naturalWidth
	}
	return &Editor{store: store, scale: scale, readOnly: readOnly}
}

// Scale returns the display scale factor (display px per original px).
func (e *Editor) Scale() float64 { return e.scale }

// SelectedID returns the id of the currently selected region, or "".
func (e *Editor) SelectedID() string { return e.selectedID }

// ReadOnly reports whether pointer input is disabled.
func (e *Editor) ReadOnly() bool { return e.readOnly }

func (e *Editor) toImage(dx, dy float64) Point {
	return Point{X: dx / e.scale, Y: dy / e.scale}
}

// hitTest returns the first region containing the point, in iteration order.
func (e *Editor) hitTest(p Point) (region.Region, bool) {
	for _, r := range e.store.Regions() {
		if r.Contains(p.X, p.Y) {
			return r, true
		}
	}
	return region.Region{}, false
}

// PointerDown begins a drag if the pointer lands inside an existing region,
// otherwise anchors a new-region draw. Coordinates are display-space.
func (e *Editor) PointerDown(dx, dy float64) {
	if e.readOnly {
		return
	}
	p := e.toImage(dx, dy)
	e.last = p

	if hit, ok := e.hitTest(p); ok {
		e.selectedID = hit.ID
		e.dragging = true
		e.dragFrom = p
		return
	}

	e.drawing = true
	e.anchor = p
	e.selectedID = ""
}

// PointerMove advances the current gesture. While drawing it returns the
// transient candidate rectangle (original-image coordinates) for rendering;
// nothing is committed to the store until pointer-up. While dragging it
// translates the selected region by the delta since the previous move, so
// repeated small moves accumulate.
func (e *Editor) PointerMove(dx, dy float64) (candidate region.Region, active bool) {
	if e.readOnly {
		return region.Region{}, false
	}
	p := e.toImage(dx, dy)
	e.last = p

	if e.drawing {
		return region.Region{
			X:      math.Min(e.anchor.X, p.X),
			Y:      math.Min(e.anchor.Y, p.Y),
			Width:  math.Abs(p.X - e.anchor.X),
			Height: math.Abs(p.Y - e.anchor.Y),
		}, true
	}

	if e.dragging && e.selectedID != "" {
		var selected *region.Region
		for _, r := range e.store.Regions() {
			if r.ID == e.selectedID {
				rr := r
				selected = &rr
				break
			}
		}
		if selected == nil {
			return region.Region{}, false
		}
		nx := selected.X + (p.X - e.dragFrom.X)
		ny := selected.Y + (p.Y - e.dragFrom.Y)
		e.store.UpdateRegion(e.selectedID, Patch{X: &nx, Y: &ny})
		e.dragFrom = p
	}
	return region.Region{}, false
}

// PointerUp ends the gesture. A draw commits a new region only when both
// sides exceed the accidental-click threshold; a drag just ends.
func (e *Editor) PointerUp(dx, dy float64) {
	if e.readOnly {
		return
	}
	e.endGesture(e.toImage(dx, dy))
}

// PointerLeave is pointer-up at the last observed position: drawing to the
// canvas edge and leaving still commits the rectangle.
func (e *Editor) PointerLeave() {
	if e.readOnly {
		return
	}
	e.endGesture(e.last)
}

func (e *Editor) endGesture(p Point) {
	if e.drawing {
		width := math.Abs(p.X - e.anchor.X)
		height := math.Abs(p.Y - e.anchor.Y)
		if width > minRegionSize && height > minRegionSize {
			e.store.AddRegion(region.Region{
				ID:     region.NewID(),
				X:      math.Min(e.anchor.X, p.X),
				Y:      math.Min(e.anchor.Y, p.Y),
				Width:  width,
				Height: height,
			})
		}
	}
	e.drawing = false
	e.dragging = false
}

// DeleteKey removes the selected region and clears the selection.
func (e *Editor) DeleteKey() {
	if e.readOnly || e.selectedID == "" {
		return
	}
	e.store.RemoveRegion(e.selectedID)
	e.selectedID = ""
}
