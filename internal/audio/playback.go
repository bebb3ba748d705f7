package audio

import (
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Playback is the separate sink from spec.md §4.1 owning one decoder
// per utterance; it never shares the capture device. Generalizes the
// teacher's internal/notify/beep.go single-shot mp3 playback into a
// sink that can play an arbitrary streamer (hub TTS audio or a
// pre-decoded sound asset) and be interrupted mid-utterance for
// cancellation.
type Playback struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate

	current *playing
}

type playing struct {
	streamer beep.StreamCloser
	done     chan struct{}
}

func NewPlayback() *Playback {
	return &Playback{}
}

func (p *Playback) ensureInit(sr beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized && p.sampleRate == sr {
		return nil
	}
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("audio: speaker init: %w", err)
	}
	p.initialized = true
	p.sampleRate = sr
	return nil
}

// Play decodes and plays streamer to completion (or until Stop is
// called), blocking the caller's own goroutine — never the event loop,
// per spec.md §5's "audio threads never suspend on application logic"
// contract; this method is meant to be invoked from a dedicated
// playback goroutine.
func (p *Playback) Play(streamer beep.StreamCloser, sr beep.SampleRate) error {
	if err := p.ensureInit(sr); err != nil {
		return err
	}

	done := make(chan struct{})
	pl := &playing{streamer: streamer, done: done}

	p.mu.Lock()
	p.current = pl
	p.mu.Unlock()

	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	<-done

	p.mu.Lock()
	if p.current == pl {
		p.current = nil
	}
	p.mu.Unlock()
	return nil
}

// FloatStreamer adapts raw mono float32 PCM (the shape audioconv
// decodes hub TTS audio into) to beep.StreamCloser so it can be handed
// to Play without a decoder, since the samples already are decoded.
type FloatStreamer struct {
	samples []float32
	pos     int
}

func NewFloatStreamer(samples []float32) *FloatStreamer {
	return &FloatStreamer{samples: samples}
}

func (s *FloatStreamer) Stream(buf [][2]float64) (n int, ok bool) {
	for n < len(buf) && s.pos < len(s.samples) {
		v := float64(s.samples[s.pos])
		buf[n][0], buf[n][1] = v, v
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *FloatStreamer) Err() error   { return nil }
func (s *FloatStreamer) Close() error { return nil }

// Stop interrupts whatever is currently playing (cancellation per
// spec.md §5: "any thinking-sound playback" is cancelled on entry to
// IDLE or Manual{cancel}).
func (p *Playback) Stop() {
	p.mu.Lock()
	cur := p.current
	p.current = nil
	p.mu.Unlock()

	if cur == nil {
		return
	}
	speaker.Clear()
	if err := cur.streamer.Close(); err != nil {
		log.Debug("audio: playback close", "err", err)
	}
	select {
	case <-cur.done:
	default:
	}
}

