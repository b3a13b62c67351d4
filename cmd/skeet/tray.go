package main

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"

	"github.com/skeetbot/skeet/internal/log"
)

// trayApp is the optional system tray UI: session controls, a live
// status line, and quit. Configuration stays in the file; the tray only
// drives the run/pause flags.
type trayApp struct {
	app    *app
	cancel context.CancelFunc
	done   <-chan struct{}

	statusItem *systray.MenuItem
	startItem  *systray.MenuItem
	pauseItem  *systray.MenuItem
	stopItem   *systray.MenuItem
}

// runTray hosts the engine under the tray event loop. systray.Run must
// own the main goroutine, so the engine moves to a background one.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app) {
	done := make(chan struct{})
	t := &trayApp{app: a, cancel: cancel, done: done}

	go func() {
		defer close(done)
		if err := a.Run(ctx); err != nil {
			log.Error("engine failed", "err", err)
		}
		systray.Quit()
	}()

	systray.Run(t.onReady, func() {
		cancel()
		<-done
	})
}

func (t *trayApp) onReady() {
	systray.SetTitle("skeet")
	systray.SetTooltip("skeet farming agent")

	t.statusItem = systray.AddMenuItem("Status: standby", "Session state")
	t.statusItem.Disable()

	systray.AddSeparator()
	t.startItem = systray.AddMenuItem("Start", "Start the session")
	t.pauseItem = systray.AddMenuItem("Pause", "Toggle pause")
	t.stopItem = systray.AddMenuItem("Stop", "Stop the session")

	if t.app.server != nil {
		systray.AddSeparator()
		dash := systray.AddMenuItem(
			fmt.Sprintf("Dashboard: http://localhost:%d", t.app.cfg.Dashboard.Port),
			"Web dashboard address")
		dash.Disable()
	}

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop and exit")

	go t.handleEvents(quitItem)
	go t.updateStatus()
}

func (t *trayApp) handleEvents(quitItem *systray.MenuItem) {
	flags := t.app.flags
	for {
		select {
		case <-t.startItem.ClickedCh:
			flags.SetRunning(true)
			flags.SetPaused(false)
		case <-t.pauseItem.ClickedCh:
			flags.SetPaused(!flags.Paused())
		case <-t.stopItem.ClickedCh:
			flags.SetRunning(false)
			flags.SetPaused(false)
		case <-quitItem.ClickedCh:
			t.cancel()
			<-t.done
			systray.Quit()
			return
		}
	}
}

// updateStatus refreshes the status line from the session counters.
func (t *trayApp) updateStatus() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		flags := t.app.flags
		state := "standby"
		switch {
		case flags.Paused():
			state = "paused"
		case flags.Running():
			state = "running"
		}

		snap := t.app.eng.Session().Snapshot(time.Now())
		uptime := (time.Duration(snap.UptimeMs) * time.Millisecond).Round(time.Second)
		t.statusItem.SetTitle(fmt.Sprintf("Status: %s | %d locks | %d attacks | %s",
			state, snap.LocksAcquired, snap.AttacksCompleted, uptime))
	}
}
