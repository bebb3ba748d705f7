// Command lva-core is the core process of the local voice assistant
// satellite: it owns the activation state machine, the hub session,
// the audio capture/playback pipeline and the wake-word scorer, and
// exposes the control/gpio-events UNIX sockets other daemons speak to.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/faiface/beep"
	"github.com/lmittmann/tint"

	"lva/internal/activation"
	"lva/internal/audio"
	"lva/internal/config"
	"lva/internal/distance"
	"lva/internal/entity"
	"lva/internal/hub"
	"lva/internal/metrics"
	"lva/internal/notify"
	"lva/internal/session"
	"lva/internal/vision"
	"lva/internal/wakeword"
	"lva/pkg/audioconv"
	"lva/pkg/ipc"
)

const (
	controlSockPath    = "/tmp/lva-ipc/control.sock"
	gpioEventsSockPath = "/tmp/lva-ipc/gpio-events.sock"
	visdSockPath       = "/tmp/lva-ipc/visd.sock"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	log.Info("lva-core: booting")

	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	prefsPath := config.PreferencesPath(cfgPath)
	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		log.Warn("preferences load failed, using defaults", "err", err)
		prefs = config.DefaultPreferences()
	}
	applyPreferences(&cfg, prefs)

	counters := metrics.New()

	var mach *activation.Machine
	getCfg := func() config.Config { return cfg }

	volume := 50.0
	deps := entity.Deps{
		PostConfig: func(updated config.Config) {
			cfg = updated
			if mach != nil {
				mach.Post(activation.Event{Kind: activation.EvConfigMutated, Config: updated})
			}
			savePreferencesFrom(prefsPath, updated)
		},
		OnReboot:   func() { log.Warn("lva-core: reboot requested, not executing under this harness") },
		OnShutdown: func() { log.Warn("lva-core: shutdown requested, not executing under this harness") },
		GetVolume:  func() float64 { return volume },
		SetVolume: func(v float64) bool {
			volume = v
			return true
		},
	}
	registry := entity.BuildRegistry(cfg, deps)

	hubAddr := fmt.Sprintf("%s:%d", cfg.HubHost, cfg.HubPort)
	hubSession := hub.NewSession(hubAddr, registry)

	visionClient := vision.NewClient(visdSockPath)
	playback := audio.NewPlayback()
	sounds := notify.NewSounds(playback)

	eventsServer := ipc.NewServer(gpioEventsSockPath, nil, nil)

	effects := session.New(hubSession, visionClient, sounds, eventsServer, getCfg, counters, func(e activation.Event) {
		if mach != nil {
			mach.Post(e)
		}
	})

	mach = activation.New(cfg, activation.RealClock{}, effects, counters)

	hubSession.OnVAEvent = func(p hub.VAEventPayload) {
		switch p.Event {
		case "processing":
			mach.Post(activation.Event{Kind: activation.EvSessionProcessing})
		case "speaking":
			mach.Post(activation.Event{Kind: activation.EvSessionSpeaking})
		case "tts_audio":
			playTTSAudio(sounds, playback, p.AudioB64)
		case "finished":
			mach.Post(activation.Event{Kind: activation.EvPlaybackComplete})
		default:
			log.Debug("lva-core: unhandled voice_assistant_event", "event", p.Event)
		}
	}

	scorer := wakeword.NewScorer(getCfg, func(t activation.TriggerSource) {
		mach.Post(activation.Event{Kind: activation.EvTrigger, Trigger: t})
	})
	loadWakeWordModels(scorer, cfg.WakeWordDirs)

	pipeline := audio.NewPipeline(cfg.AudioInputDevice, counters)
	pipeline.AddSink(scorer)
	ring := audio.NewRing(int(float64(audio.SampleRate) * (cfg.EngagedVADWindowS + 2)))
	pipeline.AddSink(ring)

	distReader := distance.NullReader{}
	distTrigger := distance.New(distReader, mach.State, getCfg, func(t activation.TriggerSource) {
		mach.Post(activation.Event{Kind: activation.EvTrigger, Trigger: t})
	}, func(mm int, ok bool) {
		if ok {
			_ = registry.SetSensor("sensor.distance", mm)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	controlHandler := func(env ipc.Envelope) {
		handleControlEnvelope(mach, registry, env)
	}
	controlServer := ipc.NewServer(controlSockPath, controlHandler, nil)
	if err := controlServer.Listen(ctx); err != nil {
		log.Error("control socket listen failed", "err", err)
		os.Exit(1)
	}
	if err := eventsServer.Listen(ctx); err != nil {
		log.Error("gpio-events socket listen failed", "err", err)
		os.Exit(1)
	}

	if err := pipeline.Start(); err != nil {
		log.Warn("audio pipeline start failed, continuing without capture", "err", err)
	}

	go mach.Run()
	go hubSession.Run(ctx)
	go distTrigger.Run(ctx)
	go streamListeningAudio(ctx, mach, pipeline, hubSession)

	log.Info("lva-core: running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("lva-core: shutting down")
	cancel()
	mach.Stop()
	controlServer.Close()
	eventsServer.Close()
	pipeline.Stop()
}

func applyPreferences(cfg *config.Config, prefs config.Preferences) {
	cfg.ThresholdPreset = prefs.ThresholdPreset
	cfg.CustomThreshold = prefs.CustomThreshold
	cfg.VisionEnabled = prefs.VisionEnabled
	cfg.AttentionRequired = prefs.AttentionRequired
	cfg.EnableThinkingSound = prefs.EnableThinkingSound
}

func savePreferencesFrom(path string, cfg config.Config) {
	prefs, err := config.LoadPreferences(path)
	if err != nil {
		prefs = config.DefaultPreferences()
	}
	prefs.ThresholdPreset = cfg.ThresholdPreset
	prefs.CustomThreshold = cfg.CustomThreshold
	prefs.VisionEnabled = cfg.VisionEnabled
	prefs.AttentionRequired = cfg.AttentionRequired
	prefs.EnableThinkingSound = cfg.EnableThinkingSound
	if err := config.SavePreferences(path, prefs); err != nil {
		log.Warn("lva-core: preferences save failed", "err", err)
	}
}

// loadWakeWordModels registers every descriptor found under dirs. The
// inference kernel is an out-of-scope external collaborator (spec.md
// §1); until one is wired in, each model scores every block as silence
// so the scorer runs without ever false-triggering.
func loadWakeWordModels(scorer *wakeword.Scorer, dirs []string) {
	for _, dir := range dirs {
		descriptors, err := wakeword.ScanDir(dir)
		if err != nil {
			log.Warn("lva-core: wake word scan failed", "dir", dir, "err", err)
			continue
		}
		for _, d := range descriptors {
			scorer.Register(&wakeword.Model{
				Descriptor: d,
				Score:      func([]float32) float64 { return 0 },
			})
		}
	}
}

func handleControlEnvelope(mach *activation.Machine, registry *entity.Registry, env ipc.Envelope) {
	switch env.Type {
	case ipc.TypeManualWake:
		mach.Post(activation.Event{Kind: activation.EvTrigger, Trigger: activation.ManualTrigger(activation.ManualWake)})
	case ipc.TypeCancel:
		mach.Post(activation.Event{Kind: activation.EvTrigger, Trigger: activation.ManualTrigger(activation.ManualCancel)})
	case ipc.TypeMuteToggle:
		mach.Post(activation.Event{Kind: activation.EvMuteToggle})
	case ipc.TypeVolumeUp, ipc.TypeVolumeDown:
		step := 5.0
		if env.Type == ipc.TypeVolumeDown {
			step = -5.0
		}
		if e, ok := registry.Get("number.system_volume"); ok {
			_, _ = registry.Apply(entity.Write{EntityID: "number.system_volume", NumberValue: clampVolume(e.NumberValue + step)})
		}
	default:
		log.Debug("lva-core: unhandled control envelope", "type", env.Type)
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// streamListeningAudio forwards captured audio to the hub while the
// session is in LISTENING, at roughly the pipeline's own block cadence.
// It never blocks the activation machine's own goroutine: it polls the
// pipeline's lock-free current-block snapshot on its own ticker.
func streamListeningAudio(ctx context.Context, mach *activation.Machine, pipeline *audio.Pipeline, hubSession *hub.Session) {
	ticker := time.NewTicker(64 * time.Millisecond)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if mach.State() != activation.StateListening {
				continue
			}
			block, ok := pipeline.CurrentBlock()
			if !ok || !block.Timestamp.After(lastSent) {
				continue
			}
			lastSent = block.Timestamp
			if err := hubSession.SendAudio(floatToPCM16(block.Samples)); err != nil {
				log.Debug("lva-core: audio stream send failed", "err", err)
			}
		}
	}
}

func floatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func playTTSAudio(sounds *notify.Sounds, playback *audio.Playback, audioB64 string) {
	if audioB64 == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		log.Warn("lva-core: tts audio decode failed", "err", err)
		return
	}
	samples, err := audioconv.DecodeWAVBytesToPCM16k(raw, audioconv.Options{})
	if err != nil {
		log.Warn("lva-core: tts audio wav decode failed", "err", err)
		return
	}
	sounds.Stop()
	go func() {
		if err := playback.Play(audio.NewFloatStreamer(samples), beep.SampleRate(audio.SampleRate)); err != nil {
			log.Warn("lva-core: tts playback failed", "err", err)
		}
	}()
}
