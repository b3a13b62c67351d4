package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/chromedp/chromedp"
	"gocv.io/x/gocv"

	"github.com/skeetbot/skeet/internal/log"
)

// BrowserSource runs the game inside a controlled Chrome instance and
// grabs frames from its viewport. Useful when the game is a browser
// canvas and the desktop around it should never leak into detection.
type BrowserSource struct {
	region image.Rectangle

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewBrowserSource launches Chrome, navigates to url and waits for the
// page to settle. region is the viewport rectangle frames are cropped
// to; an empty region keeps the whole viewport.
func NewBrowserSource(url string, region image.Rectangle) (*BrowserSource, error) {
	width, height := 1280, 720
	if !region.Empty() {
		width, height = region.Max.X, region.Max.Y
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(width, height),
	)

	b := &BrowserSource{region: region}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx)

	if err := chromedp.Run(b.ctx, chromedp.Navigate(url)); err != nil {
		b.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	// Canvas games draw nothing useful for the first moments.
	time.Sleep(2 * time.Second)

	if region.Empty() {
		b.region = image.Rect(0, 0, width, height)
	}
	log.Info("browser capture ready", "url", url, "region", b.region)
	return b, nil
}

func (b *BrowserSource) Bounds() image.Rectangle { return b.region }

func (b *BrowserSource) Grab() (gocv.Mat, error) {
	if b.ctx == nil || b.ctx.Err() != nil {
		return gocv.NewMat(), fmt.Errorf("capture browser: context gone: %w", ErrNoFrame)
	}

	grabCtx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(grabCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return gocv.NewMat(), fmt.Errorf("capture browser: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode frame: %w", err)
	}
	full, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert frame: %w", err)
	}
	if full.Empty() {
		full.Close()
		return gocv.NewMat(), ErrNoFrame
	}

	crop := b.region.Intersect(image.Rect(0, 0, full.Cols(), full.Rows()))
	if crop.Empty() {
		full.Close()
		return gocv.NewMat(), ErrNoFrame
	}
	if crop.Min.X == 0 && crop.Min.Y == 0 && crop.Dx() == full.Cols() && crop.Dy() == full.Rows() {
		return full, nil
	}
	view := full.Region(crop)
	out := view.Clone()
	view.Close()
	full.Close()
	return out, nil
}

func (b *BrowserSource) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}
