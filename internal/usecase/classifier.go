package usecase

import (
	"regexp"
	"slices"
	"strings"
)

type answer int

const (
	answerNone answer = iota
	answerYes
	answerNo
)

var (
	yesWords = []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "haan", "ha", "ji", "please do"}
	noWords  = []string{"no", "n", "nope", "nah", "na", "not now", "dont", "don't"}

	yesToken = regexp.MustCompile(`\b(yes|yeah|yep|sure|okay|ok)\b`)
	noToken  = regexp.MustCompile(`\b(no|nope|nah)\b`)

	hotelWords  = regexp.MustCompile(`\b(hotels?|stay)\b`)
	healthWords = regexp.MustCompile(`\b(covid|cases|corona|health)\b`)
	cabWords    = regexp.MustCompile(`\b(cabs?|taxis?|transfers?|transport)\b`)
	flightWords = regexp.MustCompile(`\b(flights?|fly|flying|travel)\b`)

	// keywordTokens lists the tokens a fast-path reply may consist of.
	keywordTokens = []string{
		"hotel", "hotels", "stay", "covid", "cases", "corona", "health",
		"please", "pls", "updates", "update", "stats", "status", "info",
		"show", "me", "a", "the", "book", "find", "search", "now", "then", "ok", "okay",
	}
)

// signals is the coarse reading of one utterance.
type signals struct {
	answer      answer
	wantsHotel  bool
	wantsHealth bool
	wantsCab    bool
	wantsFlight bool
	words       int
	keywordOnly bool
}

func classify(text string) signals {
	t := normalizeUtterance(text)
	return signals{
		answer:      classifyAnswer(t),
		wantsHotel:  hotelWords.MatchString(t),
		wantsHealth: healthWords.MatchString(t),
		wantsCab:    cabWords.MatchString(t),
		wantsFlight: flightWords.MatchString(t),
		words:       len(strings.Fields(t)),
		keywordOnly: isKeywordOnly(t),
	}
}

func classifyAnswer(t string) answer {
	switch {
	case slices.Contains(yesWords, t):
		return answerYes
	case slices.Contains(noWords, t):
		return answerNo
	case yesToken.MatchString(t):
		return answerYes
	case noToken.MatchString(t):
		return answerNo
	}
	return answerNone
}

func normalizeUtterance(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!?,;: ")
	return strings.Join(strings.Fields(t), " ")
}

// isBareKeyword reports a reply such as "hotel" or "covid updates please" that
// carries no slot information of its own.
func (s signals) isBareKeyword() bool {
	return s.words > 0 && s.keywordOnly && (s.wantsHotel || s.wantsHealth)
}

func isKeywordOnly(t string) bool {
	fields := strings.Fields(t)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !slices.Contains(keywordTokens, strings.Trim(f, ".,!?;:")) {
			return false
		}
	}
	return true
}
