package metrics

import (
	"bytes"
	"compress/zlib"
	"math"

	"pidgin/internal/config"
)

// vocabularyOverlap is the Jaccard similarity between two vocabulary sets.
func vocabularyOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// mimicryScore measures how much messageB copies n-gram phrases from
// messageA, for n = 2..5 (or fewer if either message is shorter), weighted
// by phrase length and normalized by the maximum attainable score.
func mimicryScore(wordsA, wordsB []string) float64 {
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	maxN := min3(5, len(wordsA), len(wordsB))
	if maxN < 2 {
		return 0.0
	}

	score := 0.0
	for n := 2; n <= maxN; n++ {
		ngramsA := ngramSet(wordsA, n)
		ngramsB := ngramSet(wordsB, n)
		if len(ngramsA) == 0 {
			continue
		}
		overlap := 0
		for g := range ngramsA {
			if _, ok := ngramsB[g]; ok {
				overlap++
			}
		}
		score += (float64(overlap) / float64(len(ngramsA))) * float64(n-1)
	}

	maxScore := 0.0
	for i := 1; i < maxN; i++ {
		maxScore += float64(i)
	}
	if maxScore > 0 {
		score /= maxScore
	}
	return score
}

func ngramSet(words []string, n int) map[string]struct{} {
	set := map[string]struct{}{}
	for i := 0; i+n <= len(words); i++ {
		key := ""
		for j := 0; j < n; j++ {
			if j > 0 {
				key += "\x00"
			}
			key += words[i+j]
		}
		set[key] = struct{}{}
	}
	return set
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// crossRepetition measures shared-word density between two messages:
// 2 × shared word count / total word count across both.
func crossRepetition(wordsA, wordsB []string) float64 {
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}
	countA := countMap(wordsA)
	countB := countMap(wordsB)

	shared := 0
	for w, ca := range countA {
		if cb, ok := countB[w]; ok {
			shared += min(ca, cb)
		}
	}
	total := len(wordsA) + len(wordsB)
	if total == 0 {
		return 0.0
	}
	return (2.0 * float64(shared)) / float64(total)
}

func countMap(words []string) map[string]int {
	m := map[string]int{}
	for _, w := range words {
		m[w]++
	}
	return m
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// structuralSimilarity combines sentence-count agreement and average
// sentence-length agreement into a single [0,1] score.
func structuralSimilarity(messageA, messageB string) float64 {
	sentCountSim, avgLenSim := structuralComponents(messageA, messageB)
	return 0.5*sentCountSim + 0.5*avgLenSim
}

// structuralComponents exposes the two structuralSimilarity sub-scores
// separately, since the weighted convergence score treats sentence-count
// agreement and overall structural agreement as distinct components
// (spec.md §4.3, "sentences" vs "structure").
func structuralComponents(messageA, messageB string) (sentCountSim, avgLenSim float64) {
	sentencesA := splitSentences(messageA)
	sentencesB := splitSentences(messageB)

	sentCountSim = 1.0 - math.Abs(float64(len(sentencesA)-len(sentencesB)))/maxF(float64(len(sentencesA)), float64(len(sentencesB)), 1)

	avgLenA := avgWordsPerSentence(sentencesA)
	avgLenB := avgWordsPerSentence(sentencesB)
	avgLenSim = 1.0 - math.Abs(avgLenA-avgLenB)/maxF(avgLenA, avgLenB, 1)
	return sentCountSim, avgLenSim
}

func avgWordsPerSentence(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len(tokenize(s))
	}
	return float64(total) / maxF(float64(len(sentences)), 0, 1)
}

func maxF(a, b, floor float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if floor > m {
		m = floor
	}
	return m
}

// compressionRatio is compressed/raw byte size under zlib deflate, a cheap
// proxy for textual complexity/redundancy.
func compressionRatio(text string) float64 {
	if text == "" {
		return 0.0
	}
	raw := []byte(text)
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(raw)
	_ = w.Close()
	if len(raw) == 0 {
		return 0.0
	}
	return float64(buf.Len()) / float64(len(raw))
}

// lengthRatio is the symmetric ratio of two message lengths, in [0,1].
func lengthRatio(lenA, lenB int) float64 {
	if lenA == 0 && lenB == 0 {
		return 1.0
	}
	hi := maxF(float64(lenA), float64(lenB), 1)
	lo := math.Min(float64(lenA), float64(lenB))
	return lo / hi
}

// ConvergenceComponents are the five inputs to the overall weighted
// convergence score (spec.md §4.3 / §8).
type ConvergenceComponents struct {
	Content     float64
	Structure   float64
	Sentences   float64
	Length      float64
	Punctuation float64
}

// overallConvergence computes the weighted sum of the five components. The
// source's own combining function was not present in the retrieval pack;
// this applies the configured weight profile directly to the five named
// components, clamped to [0,1].
func overallConvergence(c ConvergenceComponents, weights config.ConvergenceWeights) float64 {
	score := weights.Content*c.Content +
		weights.Structure*c.Structure +
		weights.Sentences*c.Sentences +
		weights.Length*c.Length +
		weights.Punctuation*c.Punctuation
	return clamp01(score)
}
