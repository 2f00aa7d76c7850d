package main

import (
	"strings"
	"unicode"
)

type scriptRule struct {
	table    *unicode.RangeTable
	language string
}

// Scripts that identify a single language well enough on their own. Han and
// kana are handled separately because Japanese mixes both.
var scriptRules = []scriptRule{
	{unicode.Hangul, "ko"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Hebrew, "he"},
	{unicode.Thai, "th"},
	{unicode.Greek, "el"},
	{unicode.Devanagari, "hi"},
}

var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "is", "in", "how", "with", "for", "my", "you", "what"},
	"es": {"el", "la", "los", "las", "de", "que", "y", "en", "con", "para", "como", "una"},
	"fr": {"le", "la", "les", "des", "et", "est", "un", "une", "du", "avec", "pour", "comment"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "mit", "ein", "eine", "wie", "für", "auf"},
	"pt": {"o", "os", "as", "de", "que", "e", "do", "da", "com", "para", "como", "não"},
	"it": {"il", "lo", "gli", "di", "che", "e", "della", "con", "per", "come", "una", "non"},
}

// detect guesses the language of a short text such as a video title.
func detect(text string) (string, float64) {
	var letters, kana, han, latin int
	scriptCounts := make([]int, len(scriptRules))
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Latin, r):
			latin++
		default:
			for i, rule := range scriptRules {
				if unicode.Is(rule.table, r) {
					scriptCounts[i]++
					break
				}
			}
		}
	}
	if letters == 0 {
		return "und", 0
	}

	if kana > 0 {
		return "ja", ratio(kana+han, letters)
	}
	best, bestCount := "", 0
	for i, count := range scriptCounts {
		if count > bestCount {
			best, bestCount = scriptRules[i].language, count
		}
	}
	if han > bestCount && han >= latin {
		return "zh", ratio(han, letters)
	}
	if bestCount > 0 && bestCount >= latin {
		return best, ratio(bestCount, letters)
	}
	if latin > 0 {
		if lang, score := latinLanguage(text); lang != "" {
			return lang, score * ratio(latin, letters)
		}
	}
	return "und", 0
}

// latinLanguage scores stopword hits; ties and misses are undetermined.
func latinLanguage(text string) (string, float64) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return "", 0
	}
	scores := map[string]int{}
	for _, word := range words {
		for lang, list := range stopwords {
			for _, stop := range list {
				if word == stop {
					scores[lang]++
					break
				}
			}
		}
	}
	best, bestScore, tie := "", 0, false
	for lang, score := range scores {
		switch {
		case score > bestScore:
			best, bestScore, tie = lang, score, false
		case score == bestScore:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return "", 0
	}
	return best, ratio(bestScore, len(words))
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	v := float64(part) / float64(whole)
	if v > 1 {
		return 1
	}
	return v
}
