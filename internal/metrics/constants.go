package metrics

import "regexp"

// Linguistic marker word sets, ported verbatim from the source
// implementation's constants table.
var (
	hedgeWords = set(
		"maybe", "perhaps", "possibly", "probably", "might", "could", "seems",
		"appears", "suggests", "somewhat", "fairly", "quite", "rather",
		"sort of", "kind of", "basically", "essentially", "generally",
		"typically", "usually", "arguably", "approximately", "roughly",
		"about", "around", "likely", "presumably", "conceivably",
		"potentially", "virtually", "practically",
	)
	agreementMarkers = set(
		"yes", "yeah", "yep", "sure", "agreed", "agree", "exactly",
		"precisely", "absolutely", "definitely", "certainly", "indeed",
		"right", "correct", "true", "affirmative", "of course", "naturally",
		"obviously", "totally", "completely", "entirely", "undoubtedly",
		"clearly",
	)
	disagreementMarkers = set(
		"no", "nope", "not", "disagree", "wrong", "incorrect", "false",
		"but", "however", "although", "though", "actually", "conversely",
		"contrary", "unfortunately", "negative", "nah", "doubt", "doubtful",
		"nevertheless", "nonetheless", "alternatively", "rather", "instead",
		"oppose", "reject",
	)
	politenessMarkers = set(
		"please", "thank", "thanks", "sorry", "excuse", "pardon",
		"appreciate", "grateful", "kindly", "respectfully", "humbly",
		"graciously", "sincerely", "apologize", "apologies", "forgive",
		"regret", "welcome",
	)

	firstPersonSingular = set("i", "me", "my", "mine", "myself")
	firstPersonPlural   = set("we", "us", "our", "ours", "ourselves")
	secondPerson        = set("you", "your", "yours", "yourself", "yourselves")
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Unicode symbol classes, ported from the source constants table.
var (
	arrows      = []rune("→←↔⇒⇐⇔➜➡⬅↑↓⬆⬇↖↗↘↙")
	mathSymbols = []rune("≈≡≠≤≥±×÷∞∑∏∂∇√∫∈∉∀∃∅^+=<>*/%-")
	boxDrawing  = []rune("┌┐└┘─│├┤┬┴┼═║╔╗╚╝")
	bullets     = []rune("•◦▪▫■□▲△▼▽◆◇○●★☆")
)

var allSpecialSymbols = buildSpecialSymbolSet()

func buildSpecialSymbolSet() map[rune]struct{} {
	m := map[rune]struct{}{}
	for _, group := range [][]rune{arrows, mathSymbols, boxDrawing, bullets} {
		for _, r := range group {
			m[r] = struct{}{}
		}
	}
	return m
}

// emojiPattern approximates the source's multi-range Unicode emoji regex.
var emojiPattern = regexp.MustCompile(
	`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}` +
		`\x{2702}-\x{27B0}\x{24C2}-\x{1F251}\x{1F900}-\x{1F9FF}\x{2600}-\x{26FF}]+`)

var arrowPattern = regexp.MustCompile(`->|<-|<->|=>|<=|<=>|[→←↔⇒⇐⇔➜➡⬅↑↓⬆⬇↖↗↘↙]`)
var mathPattern = regexp.MustCompile(`[≈≡≠≤≥±×÷∞∑∏∂∇√∫∈∉∀∃∅^+=<>*/%\-]`)

var sentenceEndings = regexp.MustCompile(`[.!?]+`)
var questionPattern = regexp.MustCompile(`\?`)
var exclamationPattern = regexp.MustCompile(`!`)
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)
var numberPattern = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)
var punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var acknowledgmentPatterns = regexp.MustCompile(`(?i)^(yes|yeah|yep|sure|okay|ok|right|correct|agreed|indeed)|^(ah|oh|hmm|hm|well|so|now|alright)|^(i see|i understand|i agree|got it|makes sense|understood)|^(thank|thanks|appreciate)|^(good|great|excellent|perfect|wonderful)`)
