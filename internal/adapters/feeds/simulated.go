package feeds

import (
	"context"
	"sync"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// Simulated reproduce una lista fija de marcadores y repite el último.
// Sin marcadores devuelve 0-0.
type Simulated struct {
	source string
	scores []domain.ScoreSnapshot

	mu    sync.Mutex
	index int
}

// NewSimulated crea una fuente simulada.
func NewSimulated(source string, scores []domain.ScoreSnapshot) *Simulated {
	return &Simulated{source: source, scores: scores}
}

// GetScore implementa ports.ScoreSource.
func (s *Simulated) GetScore(_ context.Context) domain.ScoreSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scores) == 0 {
		return domain.ScoreSnapshot{Source: s.source}
	}
	snap := s.scores[len(s.scores)-1]
	if s.index < len(s.scores) {
		snap = s.scores[s.index]
		s.index++
	}
	snap.Source = s.source
	return snap
}

// Close implementa ports.ScoreSource.
func (s *Simulated) Close() error { return nil }
