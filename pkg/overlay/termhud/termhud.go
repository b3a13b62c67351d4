// Package termhud renders the status snapshot as a small terminal
// dashboard for running headless over SSH.
package termhud

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/overlay"
)

// HUD owns the terminal screen. Publish hands snapshots to the render
// goroutine; the latest one wins when rendering falls behind.
type HUD struct {
	screen tcell.Screen

	status chan overlay.Status
	stop   chan struct{}
	done   chan struct{}

	// OnQuit fires when the operator presses q or escape in the HUD.
	OnQuit func()
}

// New initializes the terminal. The caller must Run and eventually
// Close.
func New() (*HUD, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return &HUD{
		screen: screen,
		status: make(chan overlay.Status, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Publish queues a snapshot without blocking, replacing any unrendered
// one.
func (h *HUD) Publish(st overlay.Status) {
	for {
		select {
		case h.status <- st:
			return
		default:
			select {
			case <-h.status:
			default:
			}
		}
	}
}

// Run renders until Close. Call on its own goroutine.
func (h *HUD) Run() {
	defer close(h.done)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := h.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-h.stop:
				return
			}
		}
	}()

	var last overlay.Status
	for {
		select {
		case <-h.stop:
			return
		case st := <-h.status:
			last = st
			h.render(last)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				h.screen.Sync()
				h.render(last)
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					if h.OnQuit != nil {
						h.OnQuit()
					}
				}
			}
		}
	}
}

// Close stops rendering and restores the terminal.
func (h *HUD) Close() {
	close(h.stop)
	<-h.done
	h.screen.Fini()
	log.Debug("terminal hud closed")
}

var (
	styleLabel  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleGood   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleBad    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleActive = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

func (h *HUD) render(st overlay.Status) {
	h.screen.Clear()

	h.drawText(0, 0, "skeet", styleActive.Bold(true))

	run := "stopped"
	style := styleBad
	switch {
	case st.Paused:
		run, style = "paused", styleActive
	case st.Running:
		run, style = "running", styleGood
	}
	h.drawText(8, 0, run, style)
	if st.Search {
		h.drawText(16, 0, "searching", styleActive)
	}

	h.drawLabeled(0, 2, "detector", st.Detector, styleValue)
	h.drawLabeled(0, 3, "lock", st.LockMode, lockStyle(st.LockMode))
	h.drawLabeled(0, 4, "phase", st.Phase, phaseStyle(st.Phase))
	h.drawLabeled(0, 5, "conf", fmt.Sprintf("%.2f", st.Confidence), styleValue)

	if st.Box != nil {
		mark := ""
		if st.Synthetic {
			mark = " (predicted)"
		}
		h.drawLabeled(0, 6, "box",
			fmt.Sprintf("%dx%d at (%d,%d)%s", st.Box.W, st.Box.H, st.Box.X, st.Box.Y, mark), styleValue)
		h.drawLabeled(0, 7, "aim", fmt.Sprintf("(%d,%d)", st.AimX, st.AimY), styleValue)
	} else {
		h.drawLabeled(0, 6, "box", "-", styleLabel)
	}

	h.drawLabeled(0, 8, "vel", fmt.Sprintf("(%.0f,%.0f) px/s", st.VelX, st.VelY), styleValue)
	h.drawLabeled(0, 9, "steer", st.Steering, styleValue)
	if st.Rejections > 0 {
		h.drawLabeled(0, 10, "rejects", fmt.Sprintf("%d", st.Rejections), styleBad)
	}

	h.drawText(0, 12, "q: quit hud", styleLabel)
	h.screen.Show()
}

func (h *HUD) drawLabeled(x, y int, label, value string, style tcell.Style) {
	h.drawText(x, y, fmt.Sprintf("%-9s", label), styleLabel)
	h.drawText(x+10, y, value, style)
}

func (h *HUD) drawText(x, y int, text string, style tcell.Style) {
	for i, r := range text {
		h.screen.SetContent(x+i, y, r, nil, style)
	}
}

func lockStyle(mode string) tcell.Style {
	switch mode {
	case "locked":
		return styleGood
	case "lost":
		return styleBad
	case "learning":
		return styleActive
	default:
		return styleValue
	}
}

func phaseStyle(phase string) tcell.Style {
	switch phase {
	case "fire":
		return styleBad
	case "load", "cooldown":
		return styleActive
	default:
		return styleValue
	}
}
