package classify

import "context"

// LabelScore is one label's score from a classification pass.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Scorer scores text against a candidate label set, one entry per label.
// Order is not significant; callers pick out the labels they care about.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

func scoreOf(scores []LabelScore, label string) float64 {
	for _, s := range scores {
		if s.Label == label {
			return s.Score
		}
	}
	return 0
}

// topScore returns the highest-scoring entry. Ties keep the earliest entry,
// so a scorer that returns the positive label first is never vetoed by an
// equal-scoring negative.
func topScore(scores []LabelScore) LabelScore {
	var top LabelScore
	for i, s := range scores {
		if i == 0 || s.Score > top.Score {
			top = s
		}
	}
	return top
}
