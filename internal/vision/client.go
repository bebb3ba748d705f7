package vision

import (
	"bufio"
	"context"
	log "log/slog"
	"net"
	"sync"
	"time"

	"lva/internal/activation"
	"lva/pkg/ipc"
)

const (
	requestTimeout = 1200 * time.Millisecond
	dialTimeout    = 2 * time.Second
)

// Client is the vision request client from spec.md §4.5: exactly one
// outstanding request at a time (invariant I1), synthesizing Error
// verdicts on timeout or connection failure so the activation machine
// can apply its configured fallback.
type Client struct {
	sockPath string

	mu       sync.Mutex
	inFlight bool
	backoff  time.Duration
}

func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, backoff: 500 * time.Millisecond}
}

// Request performs one glance: dial the daemon (retrying with backoff
// up to a 2s-capped series of attempts bounded by ctx), send
// GlanceRequest{requestID}, and wait up to 1.2s for a matching
// GlanceResult. It always returns a verdict, synthesizing
// Error{"unreachable"} or Error{"timeout"} rather than returning a Go
// error, since the activation machine treats every outcome uniformly.
func (c *Client) Request(ctx context.Context, requestID string) activation.AttentionVerdict {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return activation.VerdictError("busy")
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	conn, err := c.dialWithBackoff(ctx)
	if err != nil {
		log.Warn("vision: unreachable", "err", err)
		return activation.VerdictError("unreachable")
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	env, err := ipc.New(ipc.TypeVisionRequest, GlanceRequest{RequestID: requestID}, ipc.SourceCore, nowSeconds())
	if err != nil {
		return activation.VerdictError("internal")
	}
	if err := ipc.WriteEnvelope(w, env); err != nil {
		log.Warn("vision: write request failed", "err", err)
		return activation.VerdictError("unreachable")
	}

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	r := bufio.NewReader(conn)
	for {
		replyEnv, err := ipc.ReadEnvelope(r, nowSeconds())
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return activation.VerdictError("timeout")
			}
			log.Warn("vision: read reply failed", "err", err)
			return activation.VerdictError("unreachable")
		}
		if replyEnv.Type != ipc.TypeVisionResult {
			continue
		}
		var result GlanceResult
		if err := ipc.UnmarshalPayload(replyEnv, &result); err != nil {
			continue
		}
		if result.RequestID != requestID {
			continue
		}
		return toVerdict(result)
	}
}

func (c *Client) dialWithBackoff(ctx context.Context) (net.Conn, error) {
	backoff := 500 * time.Millisecond
	const cap_ = 2 * time.Second
	for {
		conn, err := ipc.Dial(c.sockPath, dialTimeout)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > cap_ {
			backoff = cap_
			// one attempt at the capped interval, then give up to the
			// caller rather than retrying forever inside a single
			// Request call.
			conn, err := ipc.Dial(c.sockPath, dialTimeout)
			if err == nil {
				return conn, nil
			}
			return nil, err
		}
	}
}

func toVerdict(r GlanceResult) activation.AttentionVerdict {
	switch r.Verdict {
	case "FACE_TOWARD":
		return activation.FaceToward(r.Confidence)
	case "FACE_AWAY":
		return activation.FaceAway()
	case "NO_FACE":
		return activation.NoFace()
	default:
		msg := r.Error
		if msg == "" {
			msg = "unknown"
		}
		return activation.VerdictError(msg)
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
