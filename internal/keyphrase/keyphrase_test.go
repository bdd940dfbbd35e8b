package keyphrase

import (
	"reflect"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Machine Learning", "machine learning"},
		{"  machine   learning  ", "machine learning"},
		{"machine learning.", "machine learning"},
		{"Deep Learning!!", "deep learning"},
		{"nlp;", "nlp"},
		{"...", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDedupeCollapsesContainment(t *testing.T) {
	t.Parallel()

	got := Dedupe([]string{"machine learning", "machine learning algorithms"}, 0)
	want := []string{"machine learning algorithms"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestDedupeKeepsDistinctPhrases(t *testing.T) {
	t.Parallel()

	got := Dedupe([]string{"machine learning", "reinforcement learning"}, 0)
	want := []string{"machine learning", "reinforcement learning"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestDedupeTokenBoundary(t *testing.T) {
	t.Parallel()

	// "art" is a substring of "artificial life" but not a token of it.
	got := Dedupe([]string{"art", "artificial life"}, 0)
	want := []string{"art", "artificial life"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestDedupeRatioBound(t *testing.T) {
	t.Parallel()

	phrases := []string{"deep learning", "deep learning ii"}

	// 13/16 = 0.8125 sits above the default bound: similar lengths, kept apart.
	got := Dedupe(phrases, 0.75)
	if len(got) != 2 {
		t.Errorf("Dedupe at 0.75 = %v, want both phrases", got)
	}

	// A looser bound absorbs the shorter phrase.
	got = Dedupe(phrases, 0.85)
	want := []string{"deep learning ii"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe at 0.85 = %v, want %v", got, want)
	}
}

func TestDedupeCanonicalEquality(t *testing.T) {
	t.Parallel()

	got := Dedupe([]string{"Machine Learning.", "machine  learning", "MACHINE LEARNING"}, 0)
	want := []string{"machine learning"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	t.Parallel()

	in := []string{
		"Machine Learning.",
		"machine learning algorithms",
		"robotics",
		"Robotics",
		"deep learning",
		"learning",
	}
	once := Dedupe(in, 0)
	twice := Dedupe(once, 0)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Dedupe is not idempotent: %v then %v", once, twice)
	}

	want := []string{"deep learning", "machine learning algorithms", "robotics"}
	if !reflect.DeepEqual(once, want) {
		t.Errorf("Dedupe = %v, want %v", once, want)
	}
}

func FuzzDedupeIdempotent(f *testing.F) {
	f.Add("machine learning,machine learning algorithms,robotics")
	f.Add("a,ab,abc,abcd")
	f.Add("Deep Learning.,deep  learning,DEEP LEARNING METHODS")
	f.Add(",,,")
	f.Fuzz(func(t *testing.T, joined string) {
		phrases := strings.Split(joined, ",")
		once := Dedupe(phrases, 0.75)
		twice := Dedupe(once, 0.75)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Dedupe not idempotent for %q: %v then %v", joined, once, twice)
		}
	})
}

func TestMergeUnions(t *testing.T) {
	t.Parallel()

	got := Merge([]string{"machine learning"}, []string{"Machine Learning Algorithms", "robotics"}, 0)
	want := []string{"machine learning algorithms", "robotics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	got := NewExtractor(0, 0).Extract("Deep learning for medical image analysis")
	want := []string{"medical image analysis", "deep learning", "image analysis", "medical image", "analysis"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtractDropsNumericNoise(t *testing.T) {
	t.Parallel()

	got := NewExtractor(0, 0).Extract("Top AI models in 2023")
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if got[0] != "top ai models" {
		t.Errorf("top candidate = %q, want %q", got[0], "top ai models")
	}
	for _, phrase := range got {
		if strings.Contains(phrase, "2023") {
			t.Errorf("year leaked into candidates: %v", got)
		}
	}
}

func TestExtractStopwordsNeverAtEdges(t *testing.T) {
	t.Parallel()

	for _, phrase := range NewExtractor(20, 4).Extract("the role of learning in the study of vision") {
		tokens := strings.Fields(phrase)
		first, last := tokens[0], tokens[len(tokens)-1]
		if _, stop := stopwords[first]; stop {
			t.Errorf("phrase %q starts with a stopword", phrase)
		}
		if _, stop := stopwords[last]; stop {
			t.Errorf("phrase %q ends with a stopword", phrase)
		}
	}
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()

	if got := NewExtractor(0, 0).Extract(""); got != nil {
		t.Errorf("Extract(\"\") = %v, want nil", got)
	}
	if got := NewExtractor(0, 0).Extract("2021 2022"); got != nil {
		t.Errorf("numeric-only input should yield nothing, got %v", got)
	}
}
