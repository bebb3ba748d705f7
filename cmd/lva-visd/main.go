// Command lva-visd is the vision daemon: it serves camera-glance
// requests over a UNIX socket and exposes a small debug HTTP/WebSocket
// status surface, independent of the core process per spec.md §4.9
// ("the camera is owned exclusively by this process").
package main

import (
	log "log/slog"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"

	"lva/internal/metrics"
	"lva/internal/visiond"
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
	sockPath := cli.StringP("sock", "s", "/tmp/lva-ipc/visd.sock", "Vision request socket path")
	debugAddr := cli.StringP("debug-addr", "d", ":8766", "Debug HTTP status surface address")
	modelPath := cli.StringP("model", "m", "", "YuNet ONNX face model path (empty disables detection)")
	deviceIndex := cli.IntP("device", "c", 0, "Camera device index")
	frameW := cli.Int("frame-width", 320, "Capture frame width")
	frameH := cli.Int("frame-height", 240, "Capture frame height")
	confidence := cli.Float64("confidence", 0.8, "YuNet detector confidence threshold")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	log.Info("lva-visd: booting")

	camera, detector := buildCameraAndDetector(*modelPath, *deviceIndex, *frameW, *frameH, float32(*confidence))

	counters := metrics.New()
	daemon := visiond.NewDaemon(*sockPath, camera, detector, counters)

	debugServer := visiond.NewDebugServer(daemon, *debugAddr)
	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			log.Error("lva-visd: debug server failed", "err", err)
		}
	}()

	log.Info("lva-visd: running", "sock", *sockPath, "debug_addr", *debugAddr)
	if err := daemon.Serve(); err != nil {
		log.Error("lva-visd: serve failed", "err", err)
		os.Exit(1)
	}
}

// buildCameraAndDetector wires the real gocv-backed camera/detector when
// a model path is supplied, falling back to the null implementations
// (which make every glance report Error{camera}) otherwise, per spec.md
// §9's "optional hardware" policy.
func buildCameraAndDetector(modelPath string, deviceIndex, frameW, frameH int, confidence float32) (visiond.Camera, visiond.Detector) {
	if modelPath == "" {
		log.Warn("lva-visd: no model path given, running with null camera/detector")
		return visiond.NullCamera{}, visiond.NullDetector{}
	}

	detector, err := visiond.NewYuNetDetector(modelPath, frameW, frameH, confidence)
	if err != nil {
		log.Error("lva-visd: failed to load face detector, falling back to null", "err", err)
		return visiond.NullCamera{}, visiond.NullDetector{}
	}
	camera := visiond.NewVideoCaptureCamera(deviceIndex, frameW, frameH)
	return camera, detector
}
