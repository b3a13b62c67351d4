// Command skeet runs the screen-capture farming agent: it watches a
// capture region for the target sprite, locks on, steers the camera,
// and plays the recorded attack sequence on a fixed phase cycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/moutend/go-hook/pkg/types"

	"github.com/skeetbot/skeet/internal/config"
	"github.com/skeetbot/skeet/internal/log"
	"github.com/skeetbot/skeet/pkg/capture"
	"github.com/skeetbot/skeet/pkg/detect"
	"github.com/skeetbot/skeet/pkg/engine"
	"github.com/skeetbot/skeet/pkg/hotkey"
	"github.com/skeetbot/skeet/pkg/input"
	"github.com/skeetbot/skeet/pkg/notify"
	"github.com/skeetbot/skeet/pkg/overlay"
	"github.com/skeetbot/skeet/pkg/overlay/termhud"
	"github.com/skeetbot/skeet/pkg/overlay/web"
	"github.com/skeetbot/skeet/pkg/replay"
	"github.com/skeetbot/skeet/pkg/stats"
)

func main() {
	cfgPath := flag.String("config", "", "path to skeet.yaml (default: search working directory and ~/.skeet)")
	record := flag.String("record", "", "record a key sequence under this name, then exit")
	detector := flag.String("detector", "", "override detector mode: template, motion, color, hybrid, model")
	profile := flag.String("profile", "", "override tuning profile: default, cautious, aggressive")
	autostart := flag.Bool("autostart", false, "start the session immediately instead of waiting for the start hotkey")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *detector != "" {
		cfg.Detector = *detector
	}
	if *profile != "" {
		cfg.Profile = *profile
	}

	log.Init(cfg.LogLevel)

	if *record != "" {
		if err := recordSequence(cfg, *record); err != nil {
			log.Error("recording failed", "err", err)
			os.Exit(1)
		}
		return
	}

	a, err := build(cfg, *autostart)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Tray {
		runTray(ctx, cancel, a)
		return
	}
	if err := a.Run(ctx); err != nil {
		log.Error("engine failed", "err", err)
		os.Exit(1)
	}
}

// app owns every wired component so teardown happens in one place, in
// order.
type app struct {
	cfg config.Config

	source   capture.Source
	raw      input.Sink
	tracked  *input.Tracked
	player   *replay.Player
	bank     *detect.Bank
	listener *hotkey.Listener
	flags    *hotkey.Flags
	notifier *notify.Notifier
	server   *web.Server
	hud      *termhud.HUD
	store    *stats.Store
	eng      *engine.Engine
}

func build(cfg config.Config, autostart bool) (*app, error) {
	a := &app{cfg: cfg}

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	region := cfg.Capture.Region.Bounds()
	switch cfg.Capture.Source {
	case "browser":
		a.source, err = capture.NewBrowserSource(cfg.Capture.URL, region)
	default:
		a.source, err = capture.NewScreenSource(region)
	}
	if err != nil {
		return nil, fmt.Errorf("capture source: %w", err)
	}

	switch cfg.Input.Sink {
	case "serial":
		a.raw, err = input.OpenSerialSink(cfg.Input.SerialPort, cfg.Input.BaudRate)
	default:
		a.raw = input.NewNativeSink()
	}
	if err != nil {
		return nil, fmt.Errorf("input sink: %w", err)
	}
	a.tracked = input.NewTracked(a.raw, cfg.Keys.PanLeft, cfg.Keys.PanRight)

	replays := replay.NewStore(cfg.Replay.Path)
	seq, err := replays.Load(cfg.Replay.Sequence)
	if err != nil {
		log.Warn("no attack sequence recorded; attacks will be skipped",
			"name", cfg.Replay.Sequence, "hint", "run skeet -record "+cfg.Replay.Sequence)
	}
	playerCfg := replay.DefaultPlayerConfig()
	playerCfg.CommitKey = cfg.Keys.Commit
	playerCfg.InteractKey = cfg.Keys.Interact
	a.player = replay.NewPlayer(seq, a.tracked, playerCfg)

	a.bank, err = detect.NewBank(engCfg.DetectorMode, engCfg.Detect)
	if err != nil {
		return nil, fmt.Errorf("detectors: %w", err)
	}

	a.eng = engine.New(engCfg, a.source, a.bank, a.tracked, a.player)

	if loc, ok := a.raw.(engine.CursorLocator); ok {
		a.eng.SetLocator(loc)
	}

	a.wireHotkeys(autostart)
	a.wireDashboard()
	a.wireNotifier()
	a.wireStats()

	return a, nil
}

// wireHotkeys installs the global start/stop/pause hook. When the hook
// cannot install, the session autostarts so the bot is still usable.
func (a *app) wireHotkeys(autostart bool) {
	hk := hotkey.DefaultConfig()
	bind := func(name string, dst *types.VKCode) {
		if name == "" {
			return
		}
		code, err := hotkey.ParseKey(name)
		if err != nil {
			log.Warn("bad hotkey binding", "key", name, "err", err)
			return
		}
		*dst = code
	}
	bind(a.cfg.Keys.Start, &hk.StartKey)
	bind(a.cfg.Keys.Stop, &hk.StopKey)
	bind(a.cfg.Keys.Pause, &hk.PauseKey)

	listener, err := hotkey.Listen(hk)
	if err != nil {
		log.Warn("hotkeys unavailable, autostarting", "err", err)
		a.flags = &hotkey.Flags{}
		a.flags.SetRunning(true)
		a.eng.SetFlags(a.flags)
		return
	}
	a.listener = listener
	a.flags = listener.Flags()
	if autostart {
		a.flags.SetRunning(true)
	}
	a.eng.SetFlags(a.flags)
}

func (a *app) wireDashboard() {
	if !a.cfg.Dashboard.Enabled {
		if a.cfg.HUD {
			a.wireHUD(nil)
		}
		return
	}

	a.server = web.NewServer(strconv.Itoa(a.cfg.Dashboard.Port), a.cfg.Dashboard.StaticDir)
	eng := a.eng
	a.server.SetStatsSource(func() stats.Snapshot {
		return eng.Session().Snapshot(time.Now())
	})
	a.server.StartAsync()

	a.eng.SetFrameSink(a.server)
	if a.cfg.HUD {
		a.wireHUD(a.server)
		return
	}
	a.eng.SetOverlay(a.server)
}

func (a *app) wireHUD(also overlay.Sink) {
	hud, err := termhud.New()
	if err != nil {
		log.Warn("terminal HUD unavailable", "err", err)
		if also != nil {
			a.eng.SetOverlay(also)
		}
		return
	}
	a.hud = hud
	if also != nil {
		a.eng.SetOverlay(overlay.Multi{also, hud})
	} else {
		a.eng.SetOverlay(hud)
	}
}

func (a *app) wireNotifier() {
	var sinks []notify.Sink
	if a.server != nil {
		sinks = append(sinks, a.server)
	}
	if url := a.cfg.Notify.WebhookURL; url != "" {
		sinks = append(sinks, notify.NewWebhookSink(url))
	}
	if url := a.cfg.Notify.WebsocketURL; url != "" {
		sinks = append(sinks, notify.NewWebsocketSink(url))
	}
	if a.cfg.Notify.Audio {
		audio, err := notify.NewAudioSink()
		if err != nil {
			log.Warn("audio cues unavailable", "err", err)
		} else {
			sinks = append(sinks, audio)
		}
	}
	if len(sinks) == 0 {
		return
	}

	gap := time.Duration(a.cfg.Notify.MinGapMs) * time.Millisecond
	a.notifier = notify.New(a.eng.Session().ID(), gap, sinks...)

	if names := a.cfg.Notify.Events; len(names) > 0 {
		types := make([]notify.Type, 0, len(names))
		for _, name := range names {
			t, err := notify.ParseType(name)
			if err != nil {
				log.Warn("bad notify.events entry, skipping", "event", name, "err", err)
				continue
			}
			types = append(types, t)
		}
		a.notifier.EnableOnly(types...)
	}

	a.eng.SetNotifier(a.notifier)
}

func (a *app) wireStats() {
	if a.cfg.Stats.MySQLDSN == "" {
		return
	}
	store, err := stats.OpenStore(a.cfg.Stats.MySQLDSN)
	if err != nil {
		log.Warn("stats store unavailable", "err", err)
		return
	}
	a.store = store
	a.eng.SetStatsStore(store)
}

// Run drives the engine until the context ends or capture fails. The
// HUD quit key cancels the same context.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.hud != nil {
		a.hud.OnQuit = cancel
		go a.hud.Run()
	}
	return a.eng.Run(ctx)
}

// Close tears the stack down: hooks first so no new commands arrive,
// then the effectors, then the observers.
func (a *app) Close() {
	if a.listener != nil {
		a.listener.Close()
	}
	if a.player != nil {
		a.player.Stop()
	}
	if a.tracked != nil {
		a.tracked.ReleaseAll()
		a.tracked.Close()
	}
	if a.hud != nil {
		a.hud.Close()
	}
	if a.server != nil {
		a.server.Shutdown()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.bank != nil {
		a.bank.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
}

// engineConfig assembles the engine tuning from the loaded file: the
// named profile variant plus the bindings and asset paths.
func engineConfig(cfg config.Config) (engine.Config, error) {
	var base engine.Config
	switch cfg.Profile {
	case "cautious":
		base = engine.CautiousConfig()
	case "aggressive":
		base = engine.AggressiveConfig()
	default:
		base = engine.DefaultConfig()
	}

	mode, err := detect.ParseMode(cfg.Detector)
	if err != nil {
		return engine.Config{}, err
	}
	base.DetectorMode = mode

	base.Detect.TemplateDir = cfg.Detect.TemplateDir
	base.Detect.ModelPath = cfg.Detect.ModelPath
	base.Detect.ModelConfig = cfg.Detect.ModelConfig
	base.Detect.ModelClasses = cfg.Detect.ModelClasses
	base.Detect.ModelClass = cfg.Detect.ModelClass

	base.Sequence.CommitKey = cfg.Keys.Commit
	base.Sequence.InteractKey = cfg.Keys.Interact
	base.Steer.LeftKey = cfg.Keys.PanLeft
	base.Steer.RightKey = cfg.Keys.PanRight

	if zones := cfg.Capture.IgnoreBounds(); len(zones) > 0 {
		base.Hygiene.Zones = zones
	}
	if cfg.Capture.CursorMaskRadius > 0 {
		base.Hygiene.CursorRadius = cfg.Capture.CursorMaskRadius
	}
	return base, nil
}

// recordSequence captures keystrokes until escape and saves them as a
// named replay.
func recordSequence(cfg config.Config, name string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("Recording %q. Perform the attack keys now; press escape to finish.\n", name)
	seq, err := replay.NewRecorder().Record(ctx)
	if err != nil {
		return err
	}

	store := replay.NewStore(cfg.Replay.Path)
	if err := store.Save(name, seq); err != nil {
		return err
	}
	fmt.Printf("Saved %q: %d events over %s.\n", name, len(seq), time.Duration(seq.Duration())*time.Millisecond)
	return nil
}
