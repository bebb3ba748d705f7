package hub

import (
	"encoding/base64"
	"fmt"
)

// VAStartPayload requests a new voice-assistant streaming session.
type VAStartPayload struct {
	UseVAD bool `json:"use_vad"`
}

// StartVoiceAssistant opens a streaming session on the hub; USE_VAD
// selects whether the hub waits for its own voice-activity detector
// (ENGAGED-entry sessions) or begins listening immediately (direct
// wake-word/manual-wake sessions), per spec.md §4.4.
func (s *Session) StartVoiceAssistant(useVAD bool) error {
	frame, err := NewFrame(MsgVAStart, VAStartPayload{UseVAD: useVAD})
	if err != nil {
		return err
	}
	return s.write(frame)
}

// SendAudio streams one captured PCM block to the hub as part of an
// open voice-assistant session.
func (s *Session) SendAudio(pcm []byte) error {
	frame, err := NewFrame(MsgVAAudio, map[string]string{
		"audio_b64": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return err
	}
	return s.write(frame)
}

// CancelVoiceAssistant sends the protocol cancel for the current
// stream, per spec.md §5's cancellation contract.
func (s *Session) CancelVoiceAssistant() error {
	frame, err := NewFrame(MsgVACancel, nil)
	if err != nil {
		return err
	}
	if err := s.write(frame); err != nil {
		return fmt.Errorf("hub: cancel voice assistant: %w", err)
	}
	return nil
}
