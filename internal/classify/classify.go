// Package classify scores free text for AI relevance. A coarse zero-shot
// pass over {"Artificial Intelligence", "Not AI"} gates candidates, then a
// fine-grained pass over adjacent-discipline labels vetoes coarse positives
// whose strongest fine label is a negative. Coarse classifiers over-trigger
// on tangential vocabulary; the veto trades recall for precision on
// borderline phrases.
package classify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/metrics"
)

// Verdict is the outcome for one text unit. Verdicts are folded into a
// lecturer's skill set, never persisted individually.
type Verdict struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
	VetoLabel  string  `json:"veto_label,omitempty"`
}

// Config carries the decision thresholds.
type Config struct {
	// RelatedThreshold is the coarse score at or above which a unit is
	// provisionally relevant.
	RelatedThreshold float64
	// InterestThreshold is the stricter coarse floor applied to declared
	// interests, which are short and easy to over-match.
	InterestThreshold float64
	// Override is the coarse score at or above which a unit is accepted
	// immediately, skipping the veto pass.
	Override float64
}

func (c *Config) applyDefaults() {
	if c.RelatedThreshold <= 0 {
		c.RelatedThreshold = 0.60
	}
	if c.InterestThreshold <= 0 {
		c.InterestThreshold = 0.75
	}
	if c.Override <= 0 {
		c.Override = 0.99
	}
}

// Classifier applies the two-stage policy on top of a swappable Scorer.
type Classifier struct {
	scorer Scorer
	cfg    Config
	log    *zap.Logger
}

// NewClassifier builds a classifier. The scorer is required.
func NewClassifier(scorer Scorer, cfg Config, log *zap.Logger) (*Classifier, error) {
	if scorer == nil {
		return nil, errors.New("classify: scorer is required")
	}
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{scorer: scorer, cfg: cfg, log: log}, nil
}

// Classify scores a single text unit at the default threshold. A unit that
// cleans to nothing is irrelevant with zero confidence, not an error.
func (c *Classifier) Classify(ctx context.Context, text string) (Verdict, error) {
	return c.classifyAt(ctx, text, c.cfg.RelatedThreshold)
}

// ClassifyInterest scores a declared-interest unit chunk by chunk at the
// stricter interest threshold. The first relevant chunk decides.
func (c *Classifier) ClassifyInterest(ctx context.Context, interest string) (Verdict, error) {
	return c.classifyChunks(ctx, Chunks(interest), c.cfg.InterestThreshold)
}

// ClassifyTitle scores a publication title, split into sentences and then
// chunks; numeric noise is skipped. The first relevant chunk decides.
func (c *Classifier) ClassifyTitle(ctx context.Context, title string) (Verdict, error) {
	var units []string
	for _, sentence := range Sentences(title) {
		if IsNumericNoise(sentence) {
			continue
		}
		units = append(units, Chunks(sentence)...)
	}
	return c.classifyChunks(ctx, units, c.cfg.RelatedThreshold)
}

func (c *Classifier) classifyChunks(ctx context.Context, chunks []string, threshold float64) (Verdict, error) {
	var last Verdict
	for _, chunk := range chunks {
		verdict, err := c.classifyAt(ctx, chunk, threshold)
		if err != nil {
			return Verdict{}, err
		}
		if verdict.Relevant {
			return verdict, nil
		}
		last = verdict
	}
	return last, nil
}

func (c *Classifier) classifyAt(ctx context.Context, text string, threshold float64) (Verdict, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return Verdict{}, nil
	}

	coarse, err := c.scorer.Score(ctx, cleaned, CoarseLabels)
	if err != nil {
		return Verdict{}, fmt.Errorf("coarse score: %w", err)
	}
	confidence := scoreOf(coarse, CoarsePositive)

	if confidence >= c.cfg.Override {
		metrics.ObserveClassification("override")
		return Verdict{Relevant: true, Confidence: confidence}, nil
	}
	if confidence < threshold {
		metrics.ObserveClassification("irrelevant")
		return Verdict{Confidence: confidence}, nil
	}

	fine, err := c.scorer.Score(ctx, cleaned, FineLabels)
	if err != nil {
		return Verdict{}, fmt.Errorf("fine score: %w", err)
	}
	if top := topScore(fine); top.Label != FinePositive && top.Score > confidence {
		metrics.ObserveClassification("vetoed")
		c.log.Debug("fine-grained veto",
			zap.String("text", cleaned),
			zap.String("label", top.Label),
			zap.Float64("label_score", top.Score),
			zap.Float64("coarse_score", confidence))
		return Verdict{Confidence: confidence, VetoLabel: top.Label}, nil
	}

	metrics.ObserveClassification("relevant")
	return Verdict{Relevant: true, Confidence: confidence}, nil
}
