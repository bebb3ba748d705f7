// Package notify plays short notification sounds (thinking sound,
// mute/unmute chimes, distance-activation chime) through the shared
// audio playback sink. Adapted from the teacher's internal/notify/beep.go,
// which played a single hardcoded beep.mp3; this generalizes it to the
// configurable sound asset paths in spec.md §3.
package notify

import (
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	"lva/internal/audio"
)

// Sounds plays the small notification assets named in
// internal/config's Sounds struct through a shared Playback sink.
type Sounds struct {
	pb *audio.Playback
}

func NewSounds(pb *audio.Playback) *Sounds {
	return &Sounds{pb: pb}
}

// Play decodes and plays the asset at path, logging and returning
// without playing anything if the path is empty or unreadable — a
// missing notification sound is never fatal.
func (s *Sounds) Play(path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		log.Warn("notify: cannot open sound asset", "path", path, "err", err)
		return
	}

	streamer, format, err := decode(path, f)
	if err != nil {
		f.Close()
		log.Warn("notify: cannot decode sound asset", "path", path, "err", err)
		return
	}

	go func() {
		defer streamer.Close()
		if err := s.pb.Play(streamer, format.SampleRate); err != nil {
			log.Warn("notify: playback failed", "path", path, "err", err)
		}
	}()
}

// Stop interrupts whatever notification sound is currently playing.
func (s *Sounds) Stop() { s.pb.Stop() }

func decode(path string, f *os.File) (beep.StreamCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("notify: unsupported sound asset extension %q", filepath.Ext(path))
	}
}
