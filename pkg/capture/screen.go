package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// ScreenSource grabs a fixed rectangle of the desktop.
type ScreenSource struct {
	region image.Rectangle
}

// NewScreenSource captures region in desktop coordinates. An empty
// region selects the primary display.
func NewScreenSource(region image.Rectangle) (*ScreenSource, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("capture: no active displays")
	}
	if region.Empty() {
		region = screenshot.GetDisplayBounds(0)
	}
	return &ScreenSource{region: region}, nil
}

func (s *ScreenSource) Bounds() image.Rectangle { return s.region }

func (s *ScreenSource) Grab() (gocv.Mat, error) {
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("capture screen: %w", err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), ErrNoFrame
	}
	return mat, nil
}

func (s *ScreenSource) Close() error { return nil }
