package classify

import (
	"context"
	"strings"
	"unicode"
)

// aiLexicon maps AI vocabulary to calibrated relevance weights. Only the
// spelled-out field name clears the immediate-accept override; borderline
// terms sit near the default threshold so the veto stage can overrule them.
var aiLexicon = map[string]float64{
	"artificial intelligence":     0.99,
	"generative ai":               0.95,
	"machine learning":            0.93,
	"deep learning":               0.93,
	"large language model":        0.93,
	"large language models":       0.93,
	"reinforcement learning":      0.92,
	"natural language processing": 0.92,
	"computer vision":             0.90,
	"neural network":              0.90,
	"neural networks":             0.90,
	"supervised learning":         0.90,
	"unsupervised learning":       0.90,
	"transfer learning":           0.90,
	"federated learning":          0.90,
	"explainable ai":              0.90,
	"llm":                         0.88,
	"llms":                        0.88,
	"machine translation":         0.85,
	"speech recognition":          0.85,
	"image classification":        0.85,
	"object detection":            0.85,
	"nlp":                         0.85,
	"ai":                          0.82,
	"genetic algorithm":           0.80,
	"genetic algorithms":          0.80,
	"evolutionary computation":    0.80,
	"swarm intelligence":          0.80,
	"recommender system":          0.80,
	"recommender systems":         0.80,
	"expert system":               0.78,
	"expert systems":              0.78,
	"knowledge representation":    0.75,
	"text mining":                 0.75,
	"pattern recognition":         0.72,
	"data mining":                 0.70,
	"autonomous systems":          0.70,
	"autonomous vehicles":         0.70,
	"robotics":                    0.68,
	"anomaly detection":           0.68,
	"bayesian inference":          0.65,
	"neural":                      0.62,
	"transformer":                 0.62,
	"bayesian":                    0.55,
}

// negativeLexicons cover the disciplines most often confused with AI by
// shared vocabulary. Labels without a lexicon score a floor value; the veto
// only needs the confusable ones to be sharp.
var negativeLexicons = map[string]map[string]float64{
	"Mathematics concept": {
		"number theory":          0.85,
		"differential equations": 0.85,
		"combinatorics":          0.85,
		"topology":               0.85,
		"algebra":                0.80,
		"theorem":                0.80,
		"calculus":               0.80,
		"geometry":               0.75,
		"numerical analysis":     0.75,
	},
	"Physics research method": {
		"particle physics": 0.90,
		"photon":           0.85,
		"relativity":       0.85,
		"plasma":           0.80,
		"spectroscopy":     0.80,
		"quantum":          0.75,
	},
	"Electronic/electrical engineering method": {
		"power electronics": 0.88,
		"semiconductor":     0.85,
		"voltage":           0.85,
		"antenna":           0.85,
		"power systems":     0.80,
		"circuit":           0.75,
		"transformer":       0.70,
	},
	"Psychology research topic": {
		"psychology":            0.90,
		"cognitive development": 0.80,
		"cognition":             0.75,
		"brain":                 0.75,
		"perception":            0.60,
		"behaviour":             0.55,
		"behavior":              0.55,
		"memory":                0.50,
	},
	"Economics topic": {
		"economics":       0.90,
		"monetary policy": 0.90,
		"macroeconomic":   0.85,
		"econometric":     0.70,
		"markets":         0.50,
	},
	"Accounting & finance topic": {
		"accounting": 0.90,
		"finance":    0.85,
		"audit":      0.80,
		"banking":    0.80,
	},
	"Bioinformatics method": {
		"bioinformatics":     0.95,
		"sequence alignment": 0.85,
		"proteomics":         0.85,
		"genome":             0.80,
		"genomics":           0.80,
	},
	"Biology research method": {
		"microbiology": 0.90,
		"ecology":      0.85,
		"enzyme":       0.80,
		"protein":      0.70,
		"cell":         0.50,
	},
	"Medical research method": {
		"clinical trial": 0.85,
		"epidemiology":   0.85,
		"oncology":       0.85,
		"clinical":       0.70,
		"patient":        0.60,
	},
	"Ethics research": {
		"moral philosophy": 0.90,
		"ethics":           0.70,
	},
	"Law topic": {
		"jurisprudence": 0.90,
		"legislation":   0.85,
		"legal":         0.75,
		"law":           0.70,
	},
	"Education research method": {
		"pedagogy":   0.90,
		"curriculum": 0.85,
		"education":  0.70,
		"teaching":   0.60,
	},
	"History research": {
		"history":    0.75,
		"historical": 0.70,
	},
	"Generic research": {
		"case study":  0.50,
		"review":      0.40,
		"methodology": 0.35,
		"research":    0.30,
		"analysis":    0.30,
	},
}

const lexiconFloor = 0.02

// LexiconScorer is a deterministic keyword scorer used when no hosted model
// is configured, and in tests. Phrases match on word boundaries against a
// punctuation-stripped lowercase form of the text.
type LexiconScorer struct{}

// NewLexiconScorer returns the built-in scorer.
func NewLexiconScorer() *LexiconScorer { return &LexiconScorer{} }

// Score implements Scorer.
func (s *LexiconScorer) Score(_ context.Context, text string, labels []string) ([]LabelScore, error) {
	canon := canonicalTokens(text)
	ai := lexiconScore(canon, aiLexicon)

	scores := make([]LabelScore, 0, len(labels))
	for _, label := range labels {
		var score float64
		switch label {
		case CoarsePositive, FinePositive:
			score = ai
		case coarseNegative:
			score = 1 - ai
		default:
			if lex, ok := negativeLexicons[label]; ok {
				score = lexiconScore(canon, lex)
			} else {
				score = lexiconFloor
			}
		}
		scores = append(scores, LabelScore{Label: label, Score: score})
	}
	return scores, nil
}

// lexiconScore is the best matching term weight, nudged up slightly for each
// additional distinct hit. It never crosses into override territory unless a
// single term carries an override weight itself.
func lexiconScore(canon string, lexicon map[string]float64) float64 {
	best := 0.0
	hits := 0
	for term, weight := range lexicon {
		if !containsPhrase(canon, term) {
			continue
		}
		hits++
		if weight > best {
			best = weight
		}
	}
	if hits > 1 && best < 0.98 {
		boosted := best + 0.01*float64(hits-1)
		if boosted > 0.98 {
			boosted = 0.98
		}
		best = boosted
	}
	return best
}

func containsPhrase(canon, phrase string) bool {
	return strings.Contains(" "+canon+" ", " "+phrase+" ")
}

func canonicalTokens(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
