// Package engine runs the per-frame pipeline: capture, detection, lock
// fusion, phase sequencing, steering, and publishing. One goroutine
// owns the tick loop; everything it calls is single-threaded from its
// point of view.
package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/capture"
	"github.com/skeetbot/skeet/pkg/detect"
	"github.com/skeetbot/skeet/pkg/hotkey"
	"github.com/skeetbot/skeet/pkg/input"
	"github.com/skeetbot/skeet/pkg/lockon"
	"github.com/skeetbot/skeet/pkg/notify"
	"github.com/skeetbot/skeet/pkg/overlay"
	"github.com/skeetbot/skeet/pkg/sequence"
	"github.com/skeetbot/skeet/pkg/stats"
	"github.com/skeetbot/skeet/pkg/steer"
)

var (
	colorLocked    = color.RGBA{G: 255, A: 255}
	colorSynthetic = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// FrameSink receives annotated JPEG frames for the dashboard. The
// engine asks FrameClients first and skips encoding when nobody
// watches.
type FrameSink interface {
	Frame(jpeg []byte)
	FrameClients() int
}

// CursorLocator reports the pointer position in screen coordinates,
// used to mask the cursor out of the frame during the fire phase.
type CursorLocator interface {
	Location() (x, y int)
}

// Engine wires the pipeline stages together and drives them from a
// single ticker.
type Engine struct {
	cfg Config

	source  capture.Source
	bank    *detect.Bank
	machine *lockon.Machine
	seq     *sequence.Sequencer
	steerer *steer.Steerer
	sink    *input.Tracked

	flags    *hotkey.Flags
	notifier *notify.Notifier
	status   overlay.Sink
	frames   FrameSink
	locator  CursorLocator
	store    *stats.Store
	session  *stats.Session

	bounds image.Rectangle

	running     bool
	paused      bool
	searching   bool
	recovered   bool // one-shot guard per tracker loss
	attackStart time.Time
	frameTick   int
}

// New builds an engine around the capture source, detector bank, and
// input sink. The attack player drives the load/fire keystrokes.
func New(cfg Config, source capture.Source, bank *detect.Bank, sink *input.Tracked, attack sequence.Attack) *Engine {
	bounds := source.Bounds()
	machine := lockon.NewMachine(cfg.Lock)
	machine.SetFrameSize(bounds.Dx(), bounds.Dy())
	return &Engine{
		cfg:     cfg,
		source:  source,
		bank:    bank,
		sink:    sink,
		machine: machine,
		seq:     sequence.NewSequencer(cfg.Sequence, bounds.Dx(), attack, sink),
		steerer: steer.NewSteerer(cfg.Steer, bounds.Dx(), sink),
		status:  overlay.Null{},
		session: stats.NewSession(),
		bounds:  bounds,
	}
}

// SetFlags attaches the hotkey run/pause flags. Without flags the
// engine runs unconditionally.
func (e *Engine) SetFlags(f *hotkey.Flags) { e.flags = f }

// SetNotifier attaches the event notifier.
func (e *Engine) SetNotifier(n *notify.Notifier) { e.notifier = n }

// SetOverlay attaches the status sink.
func (e *Engine) SetOverlay(s overlay.Sink) {
	if s != nil {
		e.status = s
	}
}

// SetFrameSink attaches the dashboard frame stream.
func (e *Engine) SetFrameSink(f FrameSink) { e.frames = f }

// SetLocator attaches the cursor locator used for fire-phase masking.
func (e *Engine) SetLocator(l CursorLocator) { e.locator = l }

// SetStatsStore attaches a persistence backend for session counters.
func (e *Engine) SetStatsStore(s *stats.Store) { e.store = s }

// Session returns the live session counters.
func (e *Engine) Session() *stats.Session { return e.session }

// Run drives the tick loop until the context is canceled or capture
// fails. Capture failure is the one fatal error class; everything else
// is absorbed per tick.
func (e *Engine) Run(ctx context.Context) error {
	log.Info("engine started",
		"tick", e.cfg.TickInterval,
		"detector", e.cfg.DetectorMode.String(),
		"region", e.bounds,
		"session", e.session.ID())

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	var flush <-chan time.Time
	if e.store != nil && e.cfg.StatsFlushInterval > 0 {
		ft := time.NewTicker(e.cfg.StatsFlushInterval)
		defer ft.Stop()
		flush = ft.C
	}

	defer e.standDown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flush:
			e.flushStats()
		case now := <-ticker.C:
			if err := e.step(now); err != nil {
				return err
			}
		}
	}
}

// step handles the run/pause flag edges, then either idles or runs a
// full pipeline tick.
func (e *Engine) step(now time.Time) error {
	running := e.flags == nil || e.flags.Running()
	paused := e.flags != nil && e.flags.Paused()

	if running && !e.running {
		e.startSession()
	}
	if !running && e.running {
		e.stopSession()
	}
	if paused && !e.paused {
		log.Info("paused")
		e.quiesce()
	}
	if !paused && e.paused && running {
		log.Info("resumed")
	}
	e.running = running
	e.paused = paused

	if !running || paused {
		e.publishIdle(now)
		return nil
	}
	return e.tick(now)
}

func (e *Engine) startSession() {
	log.Info("session started", "session", e.session.ID())
	e.searching = false
	e.recovered = false
	e.emit(notify.Event{Type: notify.Started})
	e.zoomInit()
}

func (e *Engine) stopSession() {
	log.Info("session stopped", "session", e.session.ID())
	e.machine.ForceRelease("session stopped")
	e.quiesce()
	e.emit(notify.Event{Type: notify.Stopped})
	e.flushStats()
}

// quiesce stops the attack player and releases every held key and
// button, in that order, so nothing re-presses after the sweep.
func (e *Engine) quiesce() {
	e.seq.Reset()
	e.steerer.ReleaseAll()
	e.sink.ReleaseAll()
}

// zoomInit normalizes the camera: scroll fully out, then nudge back in
// to the distance detection was tuned at.
func (e *Engine) zoomInit() {
	if e.cfg.ZoomOutSteps <= 0 && e.cfg.ZoomInSteps <= 0 {
		return
	}
	e.sink.Scroll(-e.cfg.ZoomOutSteps)
	time.Sleep(e.cfg.ZoomPause)
	e.sink.Scroll(e.cfg.ZoomInSteps)
	time.Sleep(e.cfg.ZoomPause)
}

// tick runs one full pipeline pass.
func (e *Engine) tick(now time.Time) error {
	frame, err := e.source.Grab()
	if err != nil {
		return fmt.Errorf("engine: capture failed: %w", err)
	}
	defer frame.Close()

	e.maskFrame(&frame)

	cand := e.detect(frame)

	var sig []float32
	if cand != nil {
		sig = detect.HueSignature(frame, cand.Box)
	}

	res := e.machine.Update(now, cand, sig, e.seq.Engaged())
	e.afterLock(now, frame, res)
	e.maybeRecover(now, frame)

	ev := e.seq.Update(now, res.Fused, e.machine.Mode() == lockon.Locked)
	e.afterSequence(now, res.Fused, ev)

	e.steerTick(res.Fused)
	e.aimTick(res.Fused)

	e.session.Tick()
	if cand != nil {
		e.session.Detection()
	}

	e.publish(now, res)
	e.publishFrame(frame, res.Fused)
	return nil
}

// maskFrame blacks out the configured UI zones every tick and the
// cursor region during fire, where the pointer sits on the target.
func (e *Engine) maskFrame(frame *gocv.Mat) {
	var cursor *image.Point
	if e.seq.Phase() == sequence.Fire && e.locator != nil {
		x, y := e.locator.Location()
		p := image.Pt(x-e.bounds.Min.X, y-e.bounds.Min.Y)
		cursor = &p
	}
	e.cfg.Hygiene.Apply(frame, cursor)
}

// detect runs the bank with the current lock context. Detector errors
// degrade to no candidate; the lock machine bridges the gap.
func (e *Engine) detect(frame gocv.Mat) *detect.Detection {
	var ref image.Rectangle
	if box, ok := e.machine.LastBox(); ok {
		ref = box
	}
	var sig []float32
	if p := e.machine.Profile(); p != nil {
		sig = p.Signature
	}

	cand, err := e.bank.Detect(frame, detect.Context{
		Reference: ref,
		Signature: sig,
		Engaged:   e.seq.Engaged(),
	})
	if err != nil {
		log.Debug("detector error", "err", err)
		return nil
	}
	return cand
}

// afterLock reacts to lock transitions: trackers bind on acquisition,
// counters and notifications fire on both edges.
func (e *Engine) afterLock(now time.Time, frame gocv.Mat, res lockon.Result) {
	switch res.Transition {
	case lockon.TransitionLock:
		e.session.LockAcquired()
		e.searching = false
		e.recovered = false
		if box, ok := e.machine.LastBox(); ok {
			if err := e.bank.BindTracker(frame, box); err != nil {
				log.Warn("tracker bind failed", "err", err)
			}
		}
		ev := notify.Event{Type: notify.LockAcquired}
		if res.Fused != nil {
			ev.Confidence = res.Fused.Confidence
			ev.Box = notify.BoxOf(res.Fused.Box)
		}
		e.emit(ev)
	case lockon.TransitionRelease:
		e.session.LockLost()
		e.searching = true
		e.emit(notify.Event{Type: notify.LockLost, Reason: res.Reason})
	}
}

// maybeRecover runs the one-shot wide color search when the tracker arm
// has burned through its failure budget. Success rebinds the tracker
// and refreshes the template patch; failure releases the lock unless a
// load/fire phase is running, where synthetic bridging is preferred.
func (e *Engine) maybeRecover(now time.Time, frame gocv.Mat) {
	t := e.bank.Tracker()
	if t == nil {
		return
	}
	if t.Active() {
		e.recovered = false
		return
	}
	mode := e.machine.Mode()
	if mode != lockon.Locked && mode != lockon.Lost {
		return
	}
	if e.recovered {
		return
	}
	e.recovered = true

	center, ok := e.machine.LastCenter()
	if !ok {
		return
	}

	det, err := e.bank.Recover(frame, center, e.cfg.Lock.RecoveryRadius)
	if err != nil || det == nil {
		if !e.seq.Engaged() {
			res := e.machine.ForceRelease("tracker lost and recovery search found nothing")
			e.afterLock(now, frame, res)
		}
		return
	}

	if err := e.bank.BindTracker(frame, det.Box); err != nil {
		log.Warn("tracker rebind failed", "err", err)
		return
	}
	if err := e.bank.AdoptTemplate(frame, det.Box); err != nil {
		log.Debug("template adopt failed", "err", err)
	}
	log.Info("tracker recovered", "box", det.Box)
}

// afterSequence reacts to phase events: attack bookkeeping on the load
// edge, completion on the cooldown edge, forced search on abort.
func (e *Engine) afterSequence(now time.Time, fused *detect.Detection, ev sequence.Event) {
	switch ev {
	case sequence.EventLoadStart:
		e.attackStart = now
		e.session.AttackStarted()
		nev := notify.Event{Type: notify.AttackStarted}
		if fused != nil {
			nev.Confidence = fused.Confidence
			nev.Box = notify.BoxOf(fused.Box)
		}
		e.emit(nev)
	case sequence.EventCooldownStart:
		d := now.Sub(e.attackStart)
		e.session.AttackCompleted(d)
		e.emit(notify.Event{Type: notify.AttackCompleted, DurationMs: d.Milliseconds()})
	case sequence.EventAbort:
		e.searching = true
	}
}

// steerTick picks between target-follow steering and the search
// rotation. Search runs while unlocked with nothing on screen, or
// after an abort until the target is sighted again.
func (e *Engine) steerTick(fused *detect.Detection) {
	if fused != nil {
		e.searching = false
		e.steerer.Update(fused, e.seq.Engaged())
		return
	}
	if e.searching || e.machine.Mode() == lockon.Unlocked {
		e.steerer.Search()
		return
	}
	e.steerer.Update(nil, e.seq.Engaged())
}

// aimTick keeps the pointer on the aim point through the fire phase.
// Synthetic positions are aimed at too; occlusion by the attack
// animation is exactly when the prediction matters.
func (e *Engine) aimTick(fused *detect.Detection) {
	if e.seq.Phase() != sequence.Fire || fused == nil {
		return
	}
	p := fused.AimPoint()
	e.sink.MoveTo(e.bounds.Min.X+p.X, e.bounds.Min.Y+p.Y)
}

func (e *Engine) publish(now time.Time, res lockon.Result) {
	st := overlay.Status{
		At:         now,
		Running:    true,
		Search:     e.searching,
		Detector:   e.cfg.DetectorMode.String(),
		LockMode:   e.machine.Mode().String(),
		Phase:      e.seq.Phase().String(),
		Rejections: e.machine.Rejections(),
		Steering:   e.steerer.Held().String(),
	}
	st.VelX, st.VelY = e.machine.Velocity()
	if res.Fused != nil {
		st.Confidence = res.Fused.Confidence
		st.Synthetic = res.Fused.Synthetic
		st.Box = &overlay.Box{
			X: res.Fused.Box.Min.X,
			Y: res.Fused.Box.Min.Y,
			W: res.Fused.Box.Dx(),
			H: res.Fused.Box.Dy(),
		}
		aim := res.Fused.AimPoint()
		st.AimX, st.AimY = aim.X, aim.Y
	}
	e.status.Publish(st)
}

func (e *Engine) publishIdle(now time.Time) {
	e.status.Publish(overlay.Status{
		At:       now,
		Running:  e.running,
		Paused:   e.paused,
		Detector: e.cfg.DetectorMode.String(),
		LockMode: e.machine.Mode().String(),
		Phase:    e.seq.Phase().String(),
	})
}

// publishFrame encodes and ships an annotated frame when a dashboard
// client is watching. The hub copies nothing, so the JPEG bytes are
// cloned out of the encoder buffer.
func (e *Engine) publishFrame(frame gocv.Mat, fused *detect.Detection) {
	if e.frames == nil || e.frames.FrameClients() == 0 {
		return
	}
	e.frameTick++
	if e.cfg.FrameEveryTicks > 1 && e.frameTick%e.cfg.FrameEveryTicks != 0 {
		return
	}

	view := frame.Clone()
	defer view.Close()
	if fused != nil {
		c := colorLocked
		if fused.Synthetic {
			c = colorSynthetic
		}
		gocv.Rectangle(&view, fused.Box, c, 2)
	}

	quality := e.cfg.FrameJPEGQuality
	if quality <= 0 {
		quality = 70
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, view, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		log.Debug("frame encode failed", "err", err)
		return
	}
	defer buf.Close()
	e.frames.Frame(append([]byte(nil), buf.GetBytes()...))
}

func (e *Engine) flushStats() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.session.Snapshot(time.Now())); err != nil {
		log.Warn("stats flush failed", "err", err)
	}
}

// standDown is the guaranteed cleanup on the way out of Run: stop the
// attack, release everything, leave no key held.
func (e *Engine) standDown() {
	e.quiesce()
	e.flushStats()
	log.Info("engine stopped", "session", e.session.ID())
}

func (e *Engine) emit(ev notify.Event) {
	if e.notifier != nil {
		e.notifier.Emit(ev)
	}
}
