// Command lva-frontpaneld is the front-panel daemon: it polls the
// capacitive touch pad and rotary encoder lines and forwards logical
// commands to the core's control socket (spec.md §4.8).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"github.com/lmittmann/tint"

	"lva/internal/frontpanel"
	"lva/internal/gpio"
	"lva/pkg/ipc"
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
	controlSock := cli.StringP("control-sock", "s", "/tmp/lva-ipc/control.sock", "Core control socket path")
	touchPin := cli.Int("touch-pin", 17, "Touch pad GPIO pin number")
	touchIsMute := cli.Bool("touch-mutes", false, "Touch pad toggles mute instead of waking")
	encAPin := cli.Int("enc-a-pin", 27, "Rotary encoder phase A GPIO pin number")
	encBPin := cli.Int("enc-b-pin", 22, "Rotary encoder phase B GPIO pin number")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	log.Info("lva-frontpaneld: booting")

	// No real GPIO controller ships in this tree (spec.md §1 places the
	// SoC pin driver out of scope); NullFactory lets the daemon run the
	// same poll/debounce/quadrature-decode logic on any host, observing
	// no transitions until a real gpio.Factory is wired in its place.
	var factory gpio.Factory = gpio.NullFactory{}

	touch, _ := factory.ByNumber(*touchPin)
	if err := touch.ConfigureInput(gpio.PullUp); err != nil {
		log.Error("lva-frontpaneld: configure touch pin failed", "err", err)
		os.Exit(1)
	}

	encA, _ := factory.ByNumber(*encAPin)
	encB, _ := factory.ByNumber(*encBPin)
	if err := encA.ConfigureInput(gpio.PullUp); err != nil {
		log.Error("lva-frontpaneld: configure encoder A pin failed", "err", err)
		os.Exit(1)
	}
	if err := encB.ConfigureInput(gpio.PullUp); err != nil {
		log.Error("lva-frontpaneld: configure encoder B pin failed", "err", err)
		os.Exit(1)
	}

	touchType := ipc.TypeManualWake
	if *touchIsMute {
		touchType = ipc.TypeMuteToggle
	}

	sender := frontpanel.NewSender(*controlSock, nowSeconds)
	daemon := frontpanel.New(touch, touchType, encA, encB, sender)

	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("lva-frontpaneld: shutting down")
		cancel()
	}()

	log.Info("lva-frontpaneld: running")
	daemon.Run(ctx)
}

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }
