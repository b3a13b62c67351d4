// Package capture acquires BGR frames for a fixed screen region.
// Losing the frame source is the one failure the engine treats as
// fatal; everything downstream of a frame self-heals.
package capture

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrNoFrame reports that the source produced an empty raster.
var ErrNoFrame = errors.New("capture: no frame available")

// Source produces one frame per call. The caller owns the returned
// Mat and must close it.
type Source interface {
	Grab() (gocv.Mat, error)
	Bounds() image.Rectangle
	Close() error
}
