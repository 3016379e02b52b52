package search

import (
	"strings"
	"unicode"
)

// functionWords are dropped from every query.
var functionWords = toSet(
	"the", "a", "an", "be", "is", "are", "was", "were", "to", "of", "and", "or",
	"in", "that", "have", "has", "had", "it", "its", "for", "not", "on", "with",
	"as", "you", "do", "does", "did", "at", "this", "but", "by", "from", "what",
	"which", "who", "whom", "how", "why", "when", "where", "can", "about", "into",
	"there", "their", "they", "them", "these", "those", "than", "then", "our",
	"your", "any", "all", "some", "been", "being", "will", "would", "could",
	"should", "tell", "me", "my", "we", "us", "i",
)

// strictStopWords extends functionWords with frequent verbs and fillers that
// rarely carry the topic of a query.
var strictStopWords = union(functionWords, toSet(
	"but", "not", "all", "can", "her", "one", "out", "day", "get", "him",
	"his", "man", "new", "now", "old", "see", "two", "way", "boy", "let", "put",
	"say", "she", "too", "use", "said", "each", "time", "more", "very", "just",
	"only", "over", "also", "back", "after", "first", "well", "year", "work",
	"such", "make", "even", "most", "take", "many", "come", "through", "before",
	"here", "between", "both", "under", "again", "while", "last", "might",
	"great", "little", "still", "public", "read", "know", "never", "may",
	"another", "same", "give", "like", "good", "want", "look", "think", "find",
	"right", "long", "much", "need", "part", "place", "turn", "call", "move",
	"live", "seem", "feel", "try", "ask", "show", "play", "run", "own", "leave",
	"point", "help", "keep", "start", "become", "open", "walk", "talk", "sit",
	"stand", "lose", "pay", "meet", "include", "continue", "set", "learn",
	"change", "lead", "understand", "watch", "follow", "stop", "create", "speak",
	"allow", "add", "spend", "grow", "offer", "remember", "love", "consider",
	"appear", "buy", "wait", "serve", "die", "send", "expect", "build", "stay",
	"fall", "cut", "reach", "kill", "remain", "other", "explain", "describe", "please",
))

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for w := range a {
		out[w] = true
	}
	for w := range b {
		out[w] = true
	}
	return out
}

// tokenize splits text on whitespace, lowercases and trims surrounding punctuation.
func tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// meaningfulTokens returns the distinct query tokens that survive the mode's
// filters, in query order.
func meaningfulTokens(query string, mode Mode, minLen int) []string {
	stop := functionWords
	if mode == ModeStrict {
		stop = strictStopWords
	}

	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokenize(query) {
		if len([]rune(tok)) < minLen || stop[tok] || seen[tok] {
			continue
		}
		if mode == ModeStrict && !isAlphabetic(tok) {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
