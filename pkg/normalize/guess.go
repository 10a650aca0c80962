package normalize

import "regexp"

type guessRule struct {
	re   *regexp.Regexp
	repl string
}

// guessRules are tried in order; longer endings come first so that
// なかった is not read as った.
var guessRules = []guessRule{
	{regexp.MustCompile(`^(.+)くなかった$`), "${1}い"},
	{regexp.MustCompile(`^(.+)なかった$`), "${1}る"},
	{regexp.MustCompile(`^(.+)ませんでした$`), "${1}る"},
	{regexp.MustCompile(`^(.+)ました$`), "${1}る"},
	{regexp.MustCompile(`^(.+)ません$`), "${1}る"},
	{regexp.MustCompile(`^(.+)ます$`), "${1}る"},
	{regexp.MustCompile(`^(.+)かった$`), "${1}い"},
	{regexp.MustCompile(`^(.+)くない$`), "${1}い"},
	{regexp.MustCompile(`^(.+)ない$`), "${1}る"},
	{regexp.MustCompile(`^(.+)たい$`), "${1}る"},
	{regexp.MustCompile(`^(.+)んだ$`), "${1}む"},
	{regexp.MustCompile(`^(.+)いた$`), "${1}く"},
	{regexp.MustCompile(`^(.+)した$`), "${1}す"},
	{regexp.MustCompile(`^(.+)った$`), "${1}る"},
}

// Guess applies common conjugation endings in reverse to produce a likely
// dictionary form. It is a heuristic for display and lookup only; it
// returns word unchanged when no rule applies.
func Guess(word string) string {
	for _, r := range guessRules {
		if r.re.MatchString(word) {
			return r.re.ReplaceAllString(word, r.repl)
		}
	}
	return word
}
