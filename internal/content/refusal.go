package content

import "strings"

// RefusalPredicate reports whether generated text is a model refusal that must
// not be published.
type RefusalPredicate func(text string) bool

// DefaultRefusalPhrases is the stock list used when none is configured.
var DefaultRefusalPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"i apologize",
	"as an ai",
	"as a language model",
	"i cannot",
	"i can't assist",
	"i can't help with",
	"i'm not able to",
	"i am not able to",
	"i'm unable to",
	"i am unable to",
	"against my guidelines",
	"content policy",
	"not appropriate for me",
}

// NewPhraseFilter matches text containing any phrase, ignoring case.
// Blank phrases are ignored.
func NewPhraseFilter(phrases []string) RefusalPredicate {
	lowered := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			lowered = append(lowered, phrase)
		}
	}
	return func(text string) bool {
		text = strings.ToLower(text)
		for _, phrase := range lowered {
			if strings.Contains(text, phrase) {
				return true
			}
		}
		return false
	}
}
