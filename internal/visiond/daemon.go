package visiond

import (
	"bufio"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"

	"lva/internal/metrics"
	"lva/internal/vision"
	"lva/pkg/ipc"
)

// Daemon serves VISION_GLANCE_REQUEST/VISION_GLANCE_RESULT on a UNIX
// stream socket (spec.md §4.9), generalizing the teacher's
// internal/ipc.StartServer single-shot accept loop into a
// request/reply exchange that replies on the same connection it
// received the request on.
type Daemon struct {
	sockPath string
	camera   Camera
	detector Detector
	metrics  *metrics.Counters

	mu       sync.Mutex
	inFlight bool

	lastFace     []byte // last JPEG-encoded face crop, for the debug snapshot endpoint
	lastVerdict  Result
}

func NewDaemon(sockPath string, camera Camera, detector Detector, m *metrics.Counters) *Daemon {
	if camera == nil {
		camera = NullCamera{}
	}
	if detector == nil {
		detector = NullDetector{}
	}
	return &Daemon{sockPath: sockPath, camera: camera, detector: detector, metrics: m}
}

// Serve accepts connections until the listener is closed.
func (d *Daemon) Serve() error {
	_ = os.Remove(d.sockPath)
	ln, err := net.Listen("unix", d.sockPath)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handleConn(conn)
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	env, err := ipc.ReadEnvelope(r, nowSeconds())
	if err != nil {
		return
	}
	if env.Type != ipc.TypeVisionRequest {
		return
	}
	var req vision.GlanceRequest
	if err := ipc.UnmarshalPayload(env, &req); err != nil {
		log.Warn("visiond: malformed request", "err", err)
		return
	}

	result := d.glance(req.RequestID)
	replyEnv, err := ipc.New(ipc.TypeVisionResult, result, ipc.SourceVisd, nowSeconds())
	if err != nil {
		return
	}
	if err := ipc.WriteEnvelope(w, replyEnv); err != nil {
		log.Warn("visiond: write reply failed", "err", err)
	}
}

// glance runs one burst-and-classify cycle. Concurrent requests are
// rejected with Error{busy} without touching the camera; a camera that
// fails to open returns Error{camera} and is never left open.
func (d *Daemon) glance(requestID string) vision.GlanceResult {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return vision.GlanceResult{RequestID: requestID, Verdict: "ERROR", Error: "busy"}
	}
	d.inFlight = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	start := time.Now()

	if d.metrics != nil {
		d.metrics.IncVisionRequests()
	}

	if err := d.camera.Open(); err != nil {
		log.Warn("visiond: camera open failed", "err", err)
		return vision.GlanceResult{RequestID: requestID, Verdict: "ERROR", Error: "camera"}
	}
	defer d.camera.Close()

	best := Result{Verdict: VerdictNoFace}
	deadline := time.Now().Add(burstWindow)
	for time.Now().Before(deadline) {
		frame, err := d.camera.Read()
		if err != nil {
			break
		}
		res, err := d.detector.Detect(frame)
		if err != nil {
			log.Debug("visiond: detect error, skipping frame", "err", err)
			continue
		}
		if res.Confidence > best.Confidence {
			best = res
		}
	}

	latency := time.Since(start).Milliseconds()

	d.mu.Lock()
	d.lastVerdict = best
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.IncVisionSuccess()
	}

	return vision.GlanceResult{
		RequestID:  requestID,
		Verdict:    best.Verdict.WireLabel(),
		Confidence: best.Confidence,
		LatencyMS:  int(latency),
	}
}

// LastVerdict returns the most recently computed glance result, for
// the debug status endpoint.
func (d *Daemon) LastVerdict() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastVerdict
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
