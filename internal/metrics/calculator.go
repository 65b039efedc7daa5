// Package metrics computes the per-turn linguistic and convergence metrics
// a conversation's engine uses both to populate turn_completed events and
// to decide whether convergence has been reached (spec.md §4.3).
package metrics

import "pidgin/internal/config"

// AgentMetrics is one agent's per-turn linguistic record.
type AgentMetrics struct {
	CharacterCount       int
	WordCount            int
	SentenceCount        int
	ParagraphCount       int
	VocabularySize       int
	TypeTokenRatio       float64
	HapaxRatio           float64
	LexicalDiversity     float64
	AvgSentenceLength    float64
	PunctuationDiversity int
	QuestionCount        int
	ExclamationCount     int
	EmojiCount           int
	ArrowCount           int
	MathSymbolCount      int
	SpecialSymbolCount   int
	SymbolDensity        float64
	NumberCount          int
	ProperNounCount      int

	HedgeWords          int
	AgreementMarkers    int
	DisagreementMarkers int
	PolitenessMarkers   int
	FirstPersonSingular int
	FirstPersonPlural   int
	SecondPerson        int

	StartsWithAcknowledgment bool
	EndsWithQuestion         bool

	SelfRepetition   float64
	WordEntropy      float64
	CharacterEntropy float64
	CompressionRatio float64

	RepeatedBigrams  int
	RepeatedTrigrams int
	TurnRepetition   float64

	NewWords      int
	NewWordsRatio float64

	FormalityScore float64
}

// ConvergenceMetrics is the between-agent record for one turn.
type ConvergenceMetrics struct {
	VocabularyOverlap    float64
	CumulativeOverlap    float64
	CrossRepetition      float64
	StructuralSimilarity float64
	MimicryAToB          float64
	MimicryBToA          float64
	LengthRatio          float64
	LengthConvergence    float64
	OverallConvergence   float64
}

// TurnMetrics is the flat per-turn record: both agents' linguistic metrics
// plus the convergence metrics between them.
type TurnMetrics struct {
	TurnNumber  int
	AgentA      AgentMetrics
	AgentB      AgentMetrics
	Convergence ConvergenceMetrics
}

type agentState struct {
	cumulativeVocab map[string]struct{}
	allWords        map[string]struct{}
	previousWords   [][]string
}

func newAgentState() *agentState {
	return &agentState{
		cumulativeVocab: map[string]struct{}{},
		allWords:        map[string]struct{}{},
	}
}

// Calculator is a stateful, per-conversation metrics engine. It must not be
// shared across conversations: its cumulative vocabulary sets and token
// cache are owned exclusively by the conversation that created it
// (spec.md §9, "do not share across conversations").
type Calculator struct {
	weights config.ConvergenceWeights

	agentA *agentState
	agentB *agentState

	tokens *tokenCache
}

// NewCalculator constructs a Calculator using the given convergence weight
// profile for its overall-convergence gate.
func NewCalculator(weights config.ConvergenceWeights) *Calculator {
	return &Calculator{
		weights: weights,
		agentA:  newAgentState(),
		agentB:  newAgentState(),
		tokens:  newTokenCache(DefaultTokenCacheSize),
	}
}

// CalculateTurn consumes both agents' messages for one turn and returns the
// flat metrics record, updating the calculator's cumulative state for
// subsequent turns.
func (c *Calculator) CalculateTurn(turnNumber int, messageA, messageB string) TurnMetrics {
	wordsA := c.tokens.getOrTokenize(messageA)
	wordsB := c.tokens.getOrTokenize(messageB)

	metricsA := c.calculateAgentMetrics(messageA, wordsA, c.agentA)
	metricsB := c.calculateAgentMetrics(messageB, wordsB, c.agentB)

	convergence := c.calculateConvergence(messageA, messageB, wordsA, wordsB)

	c.agentA.previousWords = append(c.agentA.previousWords, wordsA)
	c.agentB.previousWords = append(c.agentB.previousWords, wordsB)

	return TurnMetrics{
		TurnNumber:  turnNumber,
		AgentA:      metricsA,
		AgentB:      metricsB,
		Convergence: convergence,
	}
}

func (c *Calculator) calculateAgentMetrics(message string, words []string, state *agentState) AgentMetrics {
	sentences := splitSentences(message)
	wordCount := len(words)
	sentenceCount := len(sentences)

	uniqueWords := map[string]struct{}{}
	wordCounts := map[string]int{}
	for _, w := range words {
		uniqueWords[w] = struct{}{}
		wordCounts[w]++
	}
	vocabSize := len(uniqueWords)

	newWords := 0
	for w := range uniqueWords {
		if _, seen := state.allWords[w]; !seen {
			newWords++
		}
	}
	newWordsRatio := 0.0
	if vocabSize > 0 {
		newWordsRatio = float64(newWords) / float64(vocabSize)
	}

	var prevWords []string
	if n := len(state.previousWords); n > 0 {
		prevWords = state.previousWords[n-1]
	}

	turnRepetition := 0.0
	if len(state.allWords) > 0 && vocabSize > 0 {
		shared := 0
		for w := range uniqueWords {
			if _, ok := state.allWords[w]; ok {
				shared++
			}
		}
		turnRepetition = float64(shared) / float64(vocabSize)
	}

	metrics := AgentMetrics{
		CharacterCount:       len(message),
		WordCount:            wordCount,
		SentenceCount:        sentenceCount,
		ParagraphCount:       countParagraphs(message),
		VocabularySize:       vocabSize,
		TypeTokenRatio:       ttr(vocabSize, wordCount),
		HapaxRatio:           hapaxRatio(wordCounts),
		LexicalDiversity:     lexicalDiversityIndex(wordCount, vocabSize),
		AvgSentenceLength:    float64(wordCount) / maxF(float64(sentenceCount), 0, 1),
		PunctuationDiversity: punctuationDiversity(message),
		QuestionCount:        countQuestions(message),
		ExclamationCount:     countExclamations(message),
		EmojiCount:           countEmojis(message),
		ArrowCount:           countArrows(message),
		SpecialSymbolCount:   countSpecialSymbols(message),
		SymbolDensity:        symbolDensity(message),
		NumberCount:          countNumbers(message),
		ProperNounCount:      countProperNouns(wordPattern.FindAllString(message, -1)),

		StartsWithAcknowledgment: startsWithAcknowledgment(message),
		EndsWithQuestion:         endsWithQuestion(message),

		SelfRepetition:   selfRepetition(words),
		WordEntropy:      wordEntropy(wordCounts),
		CharacterEntropy: characterEntropy(message),
		CompressionRatio: compressionRatio(message),

		RepeatedBigrams:  repeatedNGramCount(words, prevWords, 2),
		RepeatedTrigrams: repeatedNGramCount(words, prevWords, 3),
		TurnRepetition:   turnRepetition,

		NewWords:      newWords,
		NewWordsRatio: newWordsRatio,

		FormalityScore: formalityScore(message, words),
	}

	markers := countLinguisticMarkers(words)
	metrics.HedgeWords = markers.HedgeWords
	metrics.AgreementMarkers = markers.AgreementMarkers
	metrics.DisagreementMarkers = markers.DisagreementMarkers
	metrics.PolitenessMarkers = markers.PolitenessMarkers
	metrics.FirstPersonSingular = markers.FirstPersonSingular
	metrics.FirstPersonPlural = markers.FirstPersonPlural
	metrics.SecondPerson = markers.SecondPerson

	for w := range uniqueWords {
		state.cumulativeVocab[w] = struct{}{}
		state.allWords[w] = struct{}{}
	}

	return metrics
}

func (c *Calculator) calculateConvergence(messageA, messageB string, wordsA, wordsB []string) ConvergenceMetrics {
	setA := toSet(wordsA)
	setB := toSet(wordsB)

	currentOverlap := vocabularyOverlap(setA, setB)
	cumulativeOverlap := vocabularyOverlap(c.agentA.cumulativeVocab, c.agentB.cumulativeVocab)

	cross := crossRepetition(wordsA, wordsB)
	sentCountSim, avgLenSim := structuralComponents(messageA, messageB)
	structural := 0.5*sentCountSim + 0.5*avgLenSim

	mimicryAToB := mimicryScore(wordsA, wordsB)
	mimicryBToA := mimicryScore(wordsB, wordsA)

	lenRatio := lengthRatio(len(messageA), len(messageB))
	lengthConvergence := 1.0 - absF(lenRatio-1.0)

	punctA := punctuationDiversity(messageA)
	punctB := punctuationDiversity(messageB)
	punctSim := 1.0 - absF(float64(punctA-punctB))/maxF(float64(punctA), float64(punctB), 1)

	overall := overallConvergence(ConvergenceComponents{
		Content:     currentOverlap,
		Structure:   structural,
		Sentences:   sentCountSim,
		Length:      lengthConvergence,
		Punctuation: punctSim,
	}, c.weights)

	return ConvergenceMetrics{
		VocabularyOverlap:    currentOverlap,
		CumulativeOverlap:    cumulativeOverlap,
		CrossRepetition:      cross,
		StructuralSimilarity: structural,
		MimicryAToB:          mimicryAToB,
		MimicryBToA:          mimicryBToA,
		LengthRatio:          lenRatio,
		LengthConvergence:    lengthConvergence,
		OverallConvergence:   overall,
	}
}

func ttr(vocabSize, wordCount int) float64 {
	if wordCount == 0 {
		return 0.0
	}
	return float64(vocabSize) / float64(wordCount)
}

func endsWithQuestion(message string) bool {
	for i := len(message) - 1; i >= 0; i-- {
		if message[i] == ' ' || message[i] == '\n' || message[i] == '\t' {
			continue
		}
		return message[i] == '?'
	}
	return false
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
