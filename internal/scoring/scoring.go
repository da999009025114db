package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// ErrModelOutput is returned when a model violates its output contract.
var ErrModelOutput = errors.New("model output violates contract")

// Model produces a graduation score and class probability vector for a
// candidate that already passed the gates. Implementations must return a
// score in [0,100] and probabilities summing to 1 within
// domain.ProbSumTolerance.
type Model interface {
	Score(c domain.Candidate, g domain.GateResult) (domain.Score, error)
	ID() string
}

// Engine wraps a Model and enforces its output contract. The model is
// opaque to the rest of the pipeline; only validated scores leave here.
type Engine struct {
	model Model
}

// NewEngine creates a scoring engine around the given model.
func NewEngine(model Model) *Engine {
	return &Engine{model: model}
}

// ModelID returns the identity of the wrapped model.
func (e *Engine) ModelID() string {
	return e.model.ID()
}

// Score runs the model and validates its output. A contract violation
// returns ErrModelOutput; the candidate must not be sized.
func (e *Engine) Score(c domain.Candidate, g domain.GateResult) (domain.Score, error) {
	s, err := e.model.Score(c, g)
	if err != nil {
		return domain.Score{}, fmt.Errorf("model %s: %w", e.model.ID(), err)
	}

	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) || s.Value < 0 || s.Value > 100 {
		return domain.Score{}, fmt.Errorf("%w: score %g outside [0,100]", ErrModelOutput, s.Value)
	}
	if !s.Probs.Valid() {
		return domain.Score{}, fmt.Errorf("%w: class probabilities sum to %g", ErrModelOutput, s.Probs.Sum())
	}
	if s.ModelID == "" {
		s.ModelID = e.model.ID()
	}
	return s, nil
}
