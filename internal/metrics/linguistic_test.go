package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordEntropy_UniformDistributionIsMaximal(t *testing.T) {
	counts := map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}
	assert.InDelta(t, 2.0, wordEntropy(counts), 0.001)
}

func TestWordEntropy_SingleWordIsZero(t *testing.T) {
	counts := map[string]int{"a": 5}
	assert.Equal(t, 0.0, wordEntropy(counts))
}

func TestSelfRepetition_ConsecutiveDuplicates(t *testing.T) {
	words := []string{"go", "go", "go", "home"}
	assert.InDelta(t, 2.0/3.0, selfRepetition(words), 0.001)
}

func TestSelfRepetition_SingleWordIsZero(t *testing.T) {
	assert.Equal(t, 0.0, selfRepetition([]string{"solo"}))
}

func TestHapaxRatio(t *testing.T) {
	counts := map[string]int{"a": 1, "b": 2, "c": 1}
	assert.InDelta(t, 2.0/3.0, hapaxRatio(counts), 0.001)
}

func TestCountLinguisticMarkers(t *testing.T) {
	words := []string{"maybe", "i", "agree", "please"}
	m := countLinguisticMarkers(words)
	assert.Equal(t, 1, m.HedgeWords)
	assert.Equal(t, 1, m.FirstPersonSingular)
	assert.Equal(t, 1, m.AgreementMarkers)
	assert.Equal(t, 1, m.PolitenessMarkers)
}

func TestFormalityScore_ContractionsLowerScore(t *testing.T) {
	informal := formalityScore("I don't know, it's fine!!", tokenize("I don't know, it's fine!!"))
	formal := formalityScore("I am uncertain about this determination", tokenize("I am uncertain about this determination"))
	assert.Less(t, informal, formal)
}

func TestRepeatedNGramCount_DetectsSharedBigrams(t *testing.T) {
	current := []string{"the", "quick", "fox"}
	previous := []string{"the", "quick", "brown", "fox"}
	assert.Equal(t, 1, repeatedNGramCount(current, previous, 2))
}
