// Package scoring turns two municipalities' metrics into weighted scores and a winner.
//
// For each weighted attribute the two raw values are converted into shares of their
// sum, so attributes on different scales (counts, kilometres, millimetres) become
// comparable. Each side's share is multiplied by the attribute's factor and the
// per-attribute contributions are summed into a total score per municipality.
package scoring

import (
	"fmt"

	"github.com/abelzeko/kommunekamp/internal/entities"
)

// Winner identifies which side of a comparison won
type Winner int

const (
	WinnerNone Winner = iota
	WinnerKomm1
	WinnerKomm2
)

func (w Winner) String() string {
	switch w {
	case WinnerKomm1:
		return "komm1"
	case WinnerKomm2:
		return "komm2"
	default:
		return "none"
	}
}

// Contribution is one attribute's share of each side's score
type Contribution struct {
	Attribute string  `json:"attribute"`
	Komm1     float64 `json:"komm1"`
	Komm2     float64 `json:"komm2"`
}

// Result holds the outcome of scoring one pair
type Result struct {
	Score1    float64        `json:"score1"`
	Score2    float64        `json:"score2"`
	Breakdown []Contribution `json:"breakdown"`
	Winner    Winner         `json:"-"`
}

// Engine scores pairs of municipalities. It holds no state besides its policy
// and is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates an engine. Empty policy fields take their defaults.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Contributions computes both sides' contribution for a single attribute.
func (e *Engine) Contributions(m1, m2 entities.Metric, w entities.AttributeWeight) (float64, float64) {
	if (!m1.Available || !m2.Available) && e.policy.Absent == AbsentNeutral {
		return 0.0, 0.0
	}

	v1, v2 := m1.Wire(), m2.Wire()
	total := v1 + v2

	// Also the only guard against a pair of sentinels: -1 + -1 lands here.
	if total <= 0 {
		return 0.0, 0.0
	}

	share1 := v1 / total
	share2 := v2 / total

	if !w.LowerIsBetter {
		return share1 * w.Factor, share2 * w.Factor
	}

	if e.policy.LowerIsBetter == LowerIsBetterComplement {
		return (1 - share1) * w.Factor, (1 - share2) * w.Factor
	}
	return (total - share1) * w.Factor, (total - share2) * w.Factor
}

// Score sums the weighted contributions for both municipalities without touching
// their winner flags. Fails if either side lacks an attribute referenced by weights.
func (e *Engine) Score(k1, k2 *entities.Komm, weights []entities.AttributeWeight) (Result, error) {
	result := Result{Breakdown: make([]Contribution, 0, len(weights))}

	for _, w := range weights {
		m1, err := k1.Attribute(w.Attribute)
		if err != nil {
			return Result{}, err
		}
		m2, err := k2.Attribute(w.Attribute)
		if err != nil {
			return Result{}, err
		}

		c1, c2 := e.Contributions(m1, m2, w)
		result.Score1 += c1
		result.Score2 += c2
		result.Breakdown = append(result.Breakdown, Contribution{
			Attribute: w.Attribute,
			Komm1:     c1,
			Komm2:     c2,
		})
	}

	result.Winner = DecideWinner(result.Score1, result.Score2)
	return result, nil
}

// Compare scores the pair and flags the winner. Both flags are reset first;
// on an exact tie neither side is flagged. On error the entities are left untouched.
func (e *Engine) Compare(k1, k2 *entities.Komm, weights []entities.AttributeWeight) (Result, error) {
	result, err := e.Score(k1, k2, weights)
	if err != nil {
		return Result{}, err
	}

	k1.Winner = result.Winner == WinnerKomm1
	k2.Winner = result.Winner == WinnerKomm2
	return result, nil
}

// DecideWinner compares two total scores
func DecideWinner(score1, score2 float64) Winner {
	switch {
	case score1 > score2:
		return WinnerKomm1
	case score1 < score2:
		return WinnerKomm2
	default:
		return WinnerNone
	}
}
