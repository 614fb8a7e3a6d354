package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

var guffWords = []string{
	"acoustic", "bonus", "demo", "digital", "edit", "extended", "instrumental", "live",
	"mono", "original", "radio", "recorded", "re-recorded", "remastered", "remaster", "master",
	"remix", "single", "stereo", "studio", "version", "ver",
}

const guffSymbols = "1234567890!@#$%^&*()-=_+[]{};\"|'\\<>?/.,~`:"

// Cleaner strips release noise such as "- Remastered 2011" or "(Live)" from track titles.
type Cleaner struct {
	titleExprs []*regexp2.Regexp
	yearExpr   *regexp2.Regexp
}

func NewCleaner() *Cleaner {
	patterns := []string{
		`(?<title>.+?)\s+(?<enclosed>\(.+\)|\[.+\])$`,
		`(?<title>.+?)\s+[\u2013\u2014-]\s+(?<suffix>.+)$`,
	}
	exprs := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		exprs = append(exprs, regexp2.MustCompile(`(?i)`+p, 0))
	}
	return &Cleaner{
		titleExprs: exprs,
		yearExpr:   regexp2.MustCompile(`(19|20)[0-9]{2}`, 0),
	}
}

// CleanTitle returns text without a trailing guff suffix. Titles with unbalanced brackets
// are returned trimmed but otherwise untouched.
func (c *Cleaner) CleanTitle(text string) string {
	text = strings.TrimSpace(text)
	if !balanced(text) {
		return text
	}
	for _, expr := range c.titleExprs {
		match, err := expr.FindStringMatch(text)
		if err != nil || match == nil {
			continue
		}
		title := strings.TrimSpace(match.GroupByName("title").String())
		tail := ""
		if g := match.GroupByName("enclosed"); g != nil && g.Length > 0 {
			tail = g.String()
		} else if g := match.GroupByName("suffix"); g != nil {
			tail = g.String()
		}
		if title != "" && c.isGuff(tail) {
			return title
		}
	}
	return text
}

func (c *Cleaner) isGuff(text string) bool {
	t := strings.ToLower(text)
	before := utf8.RuneCountInString(t)
	for _, w := range guffWords {
		t = strings.ReplaceAll(t, w, "")
	}
	t, _ = c.yearExpr.Replace(t, "", -1, -1)

	guff := before - utf8.RuneCountInString(t)
	letters := 0
	for _, r := range t {
		if strings.ContainsRune(guffSymbols, r) {
			guff++
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return guff > letters
}

func balanced(text string) bool {
	pairs := [][2]string{{"(", ")"}, {"[", "]"}, {"{", "}"}}
	for _, p := range pairs {
		if strings.Count(text, p[0]) != strings.Count(text, p[1]) {
			return false
		}
	}
	return true
}
