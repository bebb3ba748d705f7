package wakeword

import (
	log "log/slog"
	"sync"
	"time"

	"lva/internal/activation"
	"lva/internal/audio"
	"lva/internal/config"
)

const (
	smoothingAlpha  = 0.3
	logThrottle     = 300 * time.Millisecond
)

// Scorer consumes audio blocks (it implements audio.Sink) and posts
// WakeWord triggers when any model's EMA-smoothed score crosses its
// effective threshold. Adding a model at runtime via Register takes
// effect on the next block with no restart, per spec.md §4.2.
type Scorer struct {
	getConfig func() config.Config
	post      func(activation.TriggerSource)

	mu          sync.Mutex
	models      map[string]*Model
	smoothed    map[string]float64
	lastLogged  map[string]time.Time
}

func NewScorer(getConfig func() config.Config, post func(activation.TriggerSource)) *Scorer {
	return &Scorer{
		getConfig:  getConfig,
		post:       post,
		models:     make(map[string]*Model),
		smoothed:   make(map[string]float64),
		lastLogged: make(map[string]time.Time),
	}
}

// Register adds or replaces a model. Safe to call while the scorer is
// running.
func (s *Scorer) Register(m *Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = m
	if _, ok := s.smoothed[m.ID]; !ok {
		s.smoothed[m.ID] = 0
	}
	log.Info("wakeword: model registered", "id", m.ID, "type", m.Type)
}

// Disable marks a model unusable after a load error without touching
// the others or halting the scorer (spec.md §4.2's failure policy).
func (s *Scorer) Disable(id string, reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[id]; ok {
		m.disabled = true
	}
	log.Error("wakeword: model disabled", "id", id, "err", reason)
}

// Push implements audio.Sink.
func (s *Scorer) Push(b audio.Block) {
	cfg := s.getConfig()
	if !cfg.WakeWordDetection {
		return
	}

	s.mu.Lock()
	models := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		if !m.disabled {
			models = append(models, m)
		}
	}
	s.mu.Unlock()

	for _, m := range models {
		s.scoreOne(m, b, cfg)
	}
}

func (s *Scorer) scoreOne(m *Model, b audio.Block, cfg config.Config) {
	raw := m.Score(b.Samples)

	s.mu.Lock()
	prev := s.smoothed[m.ID]
	smoothed := smoothingAlpha*raw + (1-smoothingAlpha)*prev
	s.smoothed[m.ID] = smoothed
	shouldLog := false
	if last, ok := s.lastLogged[m.ID]; !ok || b.Timestamp.Sub(last) >= logThrottle {
		s.lastLogged[m.ID] = b.Timestamp
		shouldLog = true
	}
	s.mu.Unlock()

	if shouldLog {
		log.Debug("wakeword: score", "model", m.ID, "raw", raw, "smoothed", smoothed)
	}

	threshold := cfg.EffectiveThreshold(m.DefaultThreshold)
	if smoothed > threshold {
		s.post(activation.WakeWordTrigger(m.ID, smoothed))
		// reset so a sustained utterance doesn't fire once per block
		s.mu.Lock()
		s.smoothed[m.ID] = 0
		s.mu.Unlock()
	}
}
