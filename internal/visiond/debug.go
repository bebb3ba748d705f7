package visiond

import (
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DebugServer exposes the status/snapshot/live-push surface from
// SPEC_FULL.md §4.13: GET /status, GET /face/latest.jpg, GET /ws.
// Generalizes the teacher's internal/vox/bus.go websocket usage from a
// bidirectional control bus to a server-push status feed, matching
// original_source/visd/__main__.py's _handle_http_client and
// visd/test_stream.go's live status push.
type DebugServer struct {
	daemon *Daemon
	addr   string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewDebugServer(daemon *Daemon, addr string) *DebugServer {
	return &DebugServer{
		daemon:  daemon,
		addr:    addr,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (s *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/face/latest.jpg", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe starts the debug HTTP surface on addr (default port
// 8766 per original_source/config.py's face_snapshot_port).
func (s *DebugServer) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.Handler())
}

type statusResponse struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	UpdatedAt  float64 `json:"updated_at"`
}

func (s *DebugServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := s.daemon.LastVerdict()
	resp := statusResponse{
		Verdict:    res.Verdict.WireLabel(),
		Confidence: res.Confidence,
		UpdatedAt:  nowSeconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleSnapshot serves the last detected face crop, or a 1x1 gray
// placeholder image before any glance has produced a face.
func (s *DebugServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	res := s.daemon.LastVerdict()
	img := res.Face
	if img == nil {
		img = placeholderImage()
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 85}); err != nil {
		log.Warn("visiond: snapshot encode failed", "err", err)
	}
}

func placeholderImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.Gray{Y: 128})
	return img
}

// handleWS upgrades to a websocket and pushes the current status every
// second for as long as the client stays connected.
func (s *DebugServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("visiond: websocket upgrade failed", "err", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		res := s.daemon.LastVerdict()
		b, _ := json.Marshal(statusResponse{
			Verdict:    res.Verdict.WireLabel(),
			Confidence: res.Confidence,
			UpdatedAt:  nowSeconds(),
		})
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}
