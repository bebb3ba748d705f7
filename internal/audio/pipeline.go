package audio

import (
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"lva/internal/metrics"
)

const (
	SampleRate = 16000
	BlockSize  = 1024 // default block size per spec.md §4.1
)

// Block is one captured audio block, timestamped with a monotonic
// clock per spec.md §4.1.
type Block struct {
	Samples   []float32
	Timestamp time.Time
}

// Sink receives every captured block; the wake-word scorer and the
// ring buffer are both registered as sinks, matching the "fan out each
// block" contract.
type Sink interface {
	Push(Block)
}

// Pipeline owns the capture device exclusively (spec.md §5: "the audio
// input device is owned by one thread and is never opened twice").
type Pipeline struct {
	deviceName string
	metrics    *metrics.Counters

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool

	buf   []float32
	sinks []Sink

	current   Block
	currentMu sync.Mutex
}

func NewPipeline(deviceName string, m *metrics.Counters) *Pipeline {
	return &Pipeline{deviceName: deviceName, metrics: m, buf: make([]float32, BlockSize)}
}

// AddSink registers a fan-out destination for every captured block.
// Must be called before Start.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Start acquires the input device and begins the capture loop on a
// dedicated OS thread, per spec.md §5's scheduling model.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("audio: pipeline already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: portaudio init: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(p.buf), p.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audio: start input stream: %w", err)
	}

	p.stream = stream
	p.running = true

	go p.captureLoop()
	return nil
}

func (p *Pipeline) captureLoop() {
	for {
		p.mu.Lock()
		stream := p.stream
		running := p.running
		p.mu.Unlock()
		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			log.Debug("audio: capture xrun", "err", err)
			if p.metrics != nil {
				p.metrics.IncXrun()
			}
			continue
		}

		block := Block{Samples: append([]float32(nil), p.buf...), Timestamp: time.Now()}

		p.currentMu.Lock()
		p.current = block
		p.currentMu.Unlock()

		for _, s := range p.sinks {
			s.Push(block)
		}
	}
}

// CurrentBlock is non-blocking and returns the most recent block, or
// (Block{}, false) if capture has not produced one yet (treated as an
// underrun by callers that need a block right now).
func (p *Pipeline) CurrentBlock() (Block, bool) {
	p.currentMu.Lock()
	defer p.currentMu.Unlock()
	if p.current.Samples == nil {
		return Block{}, false
	}
	return p.current, true
}

// Stop releases the input device. Per invariant I4, callers must have
// already moved the session back to IDLE before calling Stop.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	portaudio.Terminate()
}
