// Package extract pulls numeric facts out of scraped page text using ordered
// tables of phrasing rules. For every fact the first rule that matches wins.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Rule binds capture groups of one pattern to fact names: group i+1 feeds
// Facts[i]. Parse defaults to ParseNumber. A match whose full text also
// matches Unless is skipped and the next match is tried.
type Rule struct {
	Facts   []string
	Pattern *regexp.Regexp
	Unless  *regexp.Regexp
	Parse   func(string) *float64
}

// NewRule compiles pattern case-insensitively. It panics on a bad pattern,
// rule tables are package-level literals.
func NewRule(pattern string, facts ...string) Rule {
	return Rule{Facts: facts, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// Except returns a copy of r that ignores matches also matching pattern.
func (r Rule) Except(pattern string) Rule {
	r.Unless = regexp.MustCompile(`(?i)` + pattern)
	return r
}

func (r Rule) match(text string) []string {
	if r.Unless == nil {
		return r.Pattern.FindStringSubmatch(text)
	}
	for _, m := range r.Pattern.FindAllStringSubmatch(text, -1) {
		if !r.Unless.MatchString(m[0]) {
			return m
		}
	}
	return nil
}

type Table []Rule

// Result maps a fact to its value. A present key with a nil value means the
// phrasing matched but the number could not be read.
type Result map[string]*float64

func (r Result) Has(fact string) bool {
	_, ok := r[fact]
	return ok
}

// Value returns the fact value, nil when absent or malformed.
func (r Result) Value(fact string) *float64 {
	return r[fact]
}

// Extract evaluates the table against text.
func (t Table) Extract(text string) Result {
	out := Result{}
	for _, rule := range t {
		if resolved(out, rule.Facts) {
			continue
		}
		m := rule.match(text)
		if m == nil {
			continue
		}
		parse := rule.Parse
		if parse == nil {
			parse = ParseNumber
		}
		for i, fact := range rule.Facts {
			if out.Has(fact) || i+1 >= len(m) {
				continue
			}
			out[fact] = parse(m[i+1])
		}
	}
	return out
}

func resolved(r Result, facts []string) bool {
	for _, f := range facts {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

var dotThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// ParseNumber reads French-formatted magnitudes: "4 500", "4.500", "12,5".
func ParseNumber(s string) *float64 {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil
	}
	if dotThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
