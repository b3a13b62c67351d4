package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Hygiene blanks frame areas that would otherwise feed the detectors
// self-inflicted artifacts: static UI chrome and, during the fire
// phase, the region around our own pointer.
type Hygiene struct {
	// Zones are rectangles zeroed on every frame, in frame
	// coordinates.
	Zones []image.Rectangle

	// CursorRadius is the blanked circle around the pointer when a
	// cursor position is supplied.
	CursorRadius int
}

// DefaultHygiene returns the production masking parameters.
func DefaultHygiene() Hygiene {
	return Hygiene{CursorRadius: 180}
}

// Apply blanks the configured zones and, when cursor is non-nil, the
// circle around it. Mutates frame in place.
func (h Hygiene) Apply(frame *gocv.Mat, cursor *image.Point) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	for _, z := range h.Zones {
		r := z.Intersect(bounds)
		if r.Empty() {
			continue
		}
		region := frame.Region(r)
		region.SetTo(gocv.NewScalar(0, 0, 0, 0))
		region.Close()
	}
	if cursor != nil && h.CursorRadius > 0 {
		gocv.Circle(frame, *cursor, h.CursorRadius, color.RGBA{}, -1)
	}
}
