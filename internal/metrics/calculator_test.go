package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pidgin/internal/config"
)

func TestCalculateTurn_IdenticalMessagesConvergeFully(t *testing.T) {
	calc := NewCalculator(config.DefaultConvergenceWeights()[config.ProfileBalanced])
	m := calc.CalculateTurn(0, "the quick brown fox jumps", "the quick brown fox jumps")

	assert.Equal(t, 1.0, m.Convergence.VocabularyOverlap)
	assert.InDelta(t, 1.0, m.Convergence.LengthConvergence, 0.001)
	assert.Greater(t, m.Convergence.OverallConvergence, 0.9)
}

func TestCalculateTurn_DisjointVocabularyDoesNotConverge(t *testing.T) {
	calc := NewCalculator(config.DefaultConvergenceWeights()[config.ProfileBalanced])
	m := calc.CalculateTurn(0, "zebra quokka platypus narwhal", "banking interest rate policy")

	assert.Equal(t, 0.0, m.Convergence.VocabularyOverlap)
}

func TestCalculateTurn_TracksCumulativeVocabAcrossTurns(t *testing.T) {
	calc := NewCalculator(config.DefaultConvergenceWeights()[config.ProfileBalanced])
	calc.CalculateTurn(0, "alpha beta gamma", "alpha beta gamma")
	m := calc.CalculateTurn(1, "alpha beta gamma", "alpha beta gamma")

	// Having seen the same words once already, turn 2 contributes no new
	// vocabulary for either agent.
	assert.Equal(t, 0, m.AgentA.NewWords)
	assert.Equal(t, 0, m.AgentB.NewWords)
	assert.Equal(t, 1.0, m.Convergence.CumulativeOverlap)
}

func TestCalculateTurn_EmptyMessagesDoNotPanic(t *testing.T) {
	calc := NewCalculator(config.DefaultConvergenceWeights()[config.ProfileBalanced])
	require.NotPanics(t, func() {
		calc.CalculateTurn(0, "", "")
	})
}

func TestCalculateTurn_SilentAgentEmptyOutputIsValidEdgeCase(t *testing.T) {
	calc := NewCalculator(config.DefaultConvergenceWeights()[config.ProfileBalanced])
	m := calc.CalculateTurn(0, "hello, are you there?", "")

	assert.Equal(t, 0, m.AgentB.WordCount)
	assert.Equal(t, 0.0, m.Convergence.VocabularyOverlap)
}

func TestVocabularyOverlap_Jaccard(t *testing.T) {
	a := toSet([]string{"a", "b", "c"})
	b := toSet([]string{"b", "c", "d"})
	assert.InDelta(t, 0.5, vocabularyOverlap(a, b), 0.001)
}

func TestMimicryScore_ExactCopyIsHigh(t *testing.T) {
	words := []string{"the", "quick", "brown", "fox", "jumps", "over"}
	assert.Greater(t, mimicryScore(words, words), 0.9)
}

func TestMimicryScore_NoOverlapIsZero(t *testing.T) {
	a := []string{"alpha", "beta", "gamma", "delta"}
	b := []string{"zebra", "quokka", "platypus", "narwhal"}
	assert.Equal(t, 0.0, mimicryScore(a, b))
}

func TestCrossRepetition_SharedWords(t *testing.T) {
	a := []string{"cat", "sat", "on", "the", "mat"}
	b := []string{"cat", "sat", "near", "the", "door"}
	got := crossRepetition(a, b)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestStructuralSimilarity_IdenticalStructure(t *testing.T) {
	assert.InDelta(t, 1.0, structuralSimilarity("One. Two. Three.", "Four. Five. Six."), 0.2)
}

func TestCompressionRatio_RepetitiveTextCompressesBetter(t *testing.T) {
	repetitive := compressionRatio("the the the the the the the the the the the the the the")
	random := compressionRatio("xq7 zj4 plo9 wbv2 ktr8 nmz1 fgh3 ycx6")
	assert.Less(t, repetitive, random)
}

func TestLengthRatio_Symmetric(t *testing.T) {
	assert.InDelta(t, lengthRatio(10, 20), lengthRatio(20, 10), 0.001)
}

func TestOverallConvergence_WeightsSumToOneProduceBoundedScore(t *testing.T) {
	weights := config.DefaultConvergenceWeights()[config.ProfileBalanced]
	score := overallConvergence(ConvergenceComponents{
		Content: 1, Structure: 1, Sentences: 1, Length: 1, Punctuation: 1,
	}, weights)
	assert.InDelta(t, 1.0, score, 0.001)
}
