package hub

import (
	"context"
	"fmt"
	log "log/slog"
	"net"
	"sync"
	"time"

	"lva/internal/entity"
)

// reconnectBackoff implements spec.md §4.6's 1s, 2s, 4s, ... cap 30s
// reconnection schedule.
type reconnectBackoff struct{ d time.Duration }

func newReconnectBackoff() *reconnectBackoff { return &reconnectBackoff{d: time.Second} }

func (b *reconnectBackoff) next() time.Duration {
	d := b.d
	b.d *= 2
	if b.d > 30*time.Second {
		b.d = 30 * time.Second
	}
	return d
}

func (b *reconnectBackoff) reset() { b.d = time.Second }

// Session owns the hub TCP connection: handshake, periodic keepalive,
// entity registration and writes, and exponential-backoff reconnection.
// Generalizes the teacher's pkg/protocol/protocol.go Protocol type
// (installWaiter/currentWaiter single in-flight reply) and
// pkg/protocol/ws.go's TryReconn loop from a WebSocket to a raw TCP
// framed transport.
type Session struct {
	addr     string
	registry *entity.Registry

	// OnVAEvent is invoked for each voice_assistant_event frame
	// received while a stream is open.
	OnVAEvent func(VAEventPayload)

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

func NewSession(addr string, registry *entity.Registry) *Session {
	return &Session{addr: addr, registry: registry}
}

// Connected reports whether the hub TCP connection is currently up.
// While disconnected, local triggers still drive audio capture but no
// conversation can complete (spec.md §4.6).
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Run connects, handshakes, and serves the session until ctx is
// cancelled, reconnecting with backoff on every disconnect.
func (s *Session) Run(ctx context.Context) {
	backoff := newReconnectBackoff()
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runOnce(ctx, backoff); err != nil {
			log.Warn("hub: session ended", "err", err)
		}
		s.setConnected(false)

		wait := backoff.next()
		log.Info("hub: reconnecting", "in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Session) runOnce(ctx context.Context, backoff *reconnectBackoff) error {
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial hub: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// readLoop blocks in ReadFrame with no deadline of its own; closing
	// conn on cancellation is what actually unblocks it; checking
	// ctx.Err() between reads (as readLoop still does) only catches
	// cancellation that lands between frames, not during a pending read.
	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	if err := s.handshake(); err != nil {
		return err
	}
	s.setConnected(true)
	backoff.reset()

	if err := s.registerEntities(); err != nil {
		return err
	}

	keepaliveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepaliveLoop(keepaliveCtx, conn)

	return s.readLoop(ctx, conn)
}

func (s *Session) handshake() error {
	hello, err := NewFrame(MsgHello, HelloPayload{ClientInfo: "lva-core", APIVersion: 1})
	if err != nil {
		return err
	}
	if err := s.write(hello); err != nil {
		return fmt.Errorf("handshake: send hello: %w", err)
	}
	reply, err := ReadFrame(s.conn)
	if err != nil {
		return fmt.Errorf("handshake: read ack: %w", err)
	}
	if reply.Type != MsgHelloAck {
		return fmt.Errorf("handshake: unexpected reply %s", reply.Type)
	}
	return nil
}

func (s *Session) registerEntities() error {
	for _, e := range s.registry.All() {
		frame, err := NewFrame(MsgEntityState, entityStatePayload(e))
		if err != nil {
			return err
		}
		if err := s.write(frame); err != nil {
			return fmt.Errorf("register entity %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *Session) keepaliveLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping, _ := NewFrame(MsgPing, nil)
			if err := s.writeTo(conn, ping); err != nil {
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn net.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(f Frame) {
	switch f.Type {
	case MsgPong:
		// liveness only
	case MsgEntityWrite:
		var payload EntityWritePayload
		if err := UnmarshalPayload(f, &payload); err != nil {
			log.Warn("hub: malformed entity_write", "err", err)
			return
		}
		s.handleEntityWrite(payload)
	case MsgVAEvent:
		var payload VAEventPayload
		if err := UnmarshalPayload(f, &payload); err != nil {
			log.Warn("hub: malformed voice_assistant_event", "err", err)
			return
		}
		if s.OnVAEvent != nil {
			s.OnVAEvent(payload)
		}
	default:
		log.Debug("hub: unhandled frame", "type", f.Type)
	}
}

func (s *Session) handleEntityWrite(p EntityWritePayload) {
	w := entity.Write{EntityID: p.EntityID}
	if p.BoolValue != nil {
		w.BoolValue = *p.BoolValue
	}
	if p.NumberValue != nil {
		w.NumberValue = *p.NumberValue
	}
	if p.StringValue != nil {
		w.StringValue = *p.StringValue
	}

	updated, err := s.registry.Apply(w)
	if err != nil {
		log.Warn("hub: rejected entity write", "entity", p.EntityID, "err", err)
		return
	}
	frame, err := NewFrame(MsgEntityState, entityStatePayload(updated))
	if err == nil {
		_ = s.write(frame)
	}
}

// PublishSensor pushes a single sensor's current value to the hub.
func (s *Session) PublishSensor(id string, value any) {
	if err := s.registry.SetSensor(id, value); err != nil {
		log.Debug("hub: PublishSensor", "err", err)
		return
	}
	e, ok := s.registry.Get(id)
	if !ok {
		return
	}
	frame, err := NewFrame(MsgEntityState, entityStatePayload(e))
	if err != nil {
		return
	}
	_ = s.write(frame)
}

func (s *Session) write(f Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("hub: not connected")
	}
	return s.writeTo(conn, f)
}

func (s *Session) writeTo(conn net.Conn, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFrame(conn, f)
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func entityStatePayload(e entity.Entity) EntityStatePayload {
	p := EntityStatePayload{EntityID: e.ID, Kind: e.Kind.String()}
	switch e.Kind {
	case entity.KindSwitch:
		v := e.BoolValue
		p.BoolValue = &v
	case entity.KindNumber:
		v := e.NumberValue
		p.NumberValue = &v
	case entity.KindSelect:
		v := e.StringValue
		p.StringValue = &v
	case entity.KindSensor:
		p.SensorValue = e.SensorValue
	case entity.KindMediaPlayer:
		v := e.Volume
		p.NumberValue = &v
		bv := e.BoolValue
		p.BoolValue = &bv
	}
	return p
}
