package metrics

import (
	"math"
	"strings"
)

// wordEntropy computes the Shannon entropy (base 2) of a word-frequency
// distribution.
func wordEntropy(counts map[string]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0.0
	}
	entropy := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// characterEntropy computes the Shannon entropy of the message's character
// distribution. The source formula is not present in the retrieved corpus;
// this applies the same entropy definition used for words, over runes
// instead.
func characterEntropy(text string) float64 {
	counts := map[rune]int{}
	total := 0
	for _, r := range text {
		counts[r]++
		total++
	}
	if total == 0 {
		return 0.0
	}
	entropy := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// selfRepetition measures consecutive word repetition within one message.
func selfRepetition(words []string) float64 {
	if len(words) < 2 {
		return 0.0
	}
	reps := 0
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			reps++
		}
	}
	return float64(reps) / float64(len(words)-1)
}

// lexicalDiversityIndex is the source's root-TTR variant: vocab / sqrt(words).
func lexicalDiversityIndex(wordCount, vocabSize int) float64 {
	if wordCount == 0 {
		return 0.0
	}
	return float64(vocabSize) / math.Sqrt(float64(wordCount))
}

// hapaxRatio is the fraction of vocabulary words that occur exactly once
// (hapax legomena), a standard lexical-richness measure not present
// verbatim in the retrieved source but consistent with its TTR/LDI family.
func hapaxRatio(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0.0
	}
	hapax := 0
	for _, c := range counts {
		if c == 1 {
			hapax++
		}
	}
	return float64(hapax) / float64(len(counts))
}

// LinguisticMarkers counts occurrences of each word-class marker in a
// tokenized message.
type LinguisticMarkers struct {
	HedgeWords          int
	AgreementMarkers    int
	DisagreementMarkers int
	PolitenessMarkers   int
	FirstPersonSingular int
	FirstPersonPlural   int
	SecondPerson        int
}

func countLinguisticMarkers(words []string) LinguisticMarkers {
	var m LinguisticMarkers
	for _, w := range words {
		lw := strings.ToLower(w)
		if _, ok := hedgeWords[lw]; ok {
			m.HedgeWords++
		}
		if _, ok := agreementMarkers[lw]; ok {
			m.AgreementMarkers++
		}
		if _, ok := disagreementMarkers[lw]; ok {
			m.DisagreementMarkers++
		}
		if _, ok := politenessMarkers[lw]; ok {
			m.PolitenessMarkers++
		}
		if _, ok := firstPersonSingular[lw]; ok {
			m.FirstPersonSingular++
		}
		if _, ok := firstPersonPlural[lw]; ok {
			m.FirstPersonPlural++
		}
		if _, ok := secondPerson[lw]; ok {
			m.SecondPerson++
		}
	}
	return m
}

// formalityScore estimates register on a 0 (informal) to 1 (formal) scale:
// contractions and exclamations push it down, long words push it up.
func formalityScore(text string, words []string) float64 {
	if len(words) == 0 {
		return 0.5
	}
	n := float64(len(words))
	score := 0.0

	contractions := 0
	for _, w := range words {
		if strings.Contains(w, "'") {
			contractions++
		}
	}
	score -= (float64(contractions) / n) * 0.3

	score -= (float64(strings.Count(text, "!")) / n) * 0.2

	multiQuestion := 0
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '?' && text[i+1] == '?' {
			multiQuestion++
		}
	}
	score -= (float64(multiQuestion) / n) * 0.1

	longWords := 0
	for _, w := range words {
		if len(w) > 7 {
			longWords++
		}
	}
	score += (float64(longWords) / n) * 0.3

	return clamp01(0.5 + score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// repeatedBigrams and repeatedTrigrams count n-grams in words that also
// appeared in previous, the agent's immediately preceding message — the
// per-agent cross-turn phrase-repetition signal (spec.md §4.3).
func repeatedNGramCount(words, previous []string, n int) int {
	if len(words) < n || len(previous) < n {
		return 0
	}
	prevSet := map[string]struct{}{}
	for i := 0; i+n <= len(previous); i++ {
		prevSet[strings.Join(previous[i:i+n], " ")] = struct{}{}
	}
	count := 0
	for i := 0; i+n <= len(words); i++ {
		if _, ok := prevSet[strings.Join(words[i:i+n], " ")]; ok {
			count++
		}
	}
	return count
}
