package censor

import (
	"fmt"
	"sort"
	"strings"
)

// Rule is one banned phrase with its replacement. An empty replacement
// means the phrase blocks the whole message instead of being rewritten.
type Rule struct {
	Phrase  string
	Replace string
}

// Phrase evaluation outcomes.
type PhraseOutcome int

const (
	PhraseUnchanged PhraseOutcome = iota
	PhraseRewritten
	PhraseBlocked
)

// PhraseResult is the outcome of scanning one message against a rule set.
// Text carries the rewritten message for PhraseRewritten; Phrase names the
// blocking phrase for PhraseBlocked.
type PhraseResult struct {
	Outcome PhraseOutcome
	Text    string
	Phrase  string
}

// RuleSet is an immutable, ordered set of censor rules. Rules are keyed
// case-insensitively (one rule per phrase, later duplicates win) and
// evaluated in case-insensitive lexicographic order of phrase so results
// are reproducible regardless of configuration file order.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a RuleSet from configured rules. A rule with an empty
// phrase is a configuration error.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	byPhrase := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if r.Phrase == "" {
			return nil, fmt.Errorf("censor: badword text is empty")
		}
		byPhrase[asciiLower(r.Phrase)] = r
	}

	ordered := make([]Rule, 0, len(byPhrase))
	for _, r := range byPhrase {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return asciiLower(ordered[i].Phrase) < asciiLower(ordered[j].Phrase)
	})

	return &RuleSet{rules: ordered}, nil
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rules returns the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule { return rs.rules }

// Evaluate scans text against every rule in order. Rewriting rules
// substitute all occurrences of their phrase and later rules see the
// updated text; the first blocking rule whose phrase occurs anywhere in
// the current text stops evaluation immediately. Matching is a raw
// case-insensitive substring search over the IRC (ASCII) casemap, not a
// word-boundary match.
func (rs *RuleSet) Evaluate(text string) PhraseResult {
	cur := text
	changed := false

	for _, r := range rs.rules {
		if r.Replace == "" {
			if foldIndex(cur, r.Phrase, 0) >= 0 {
				// Any rewrites applied so far are discarded by the
				// caller: a blocked message is blocked, not rewritten.
				return PhraseResult{Outcome: PhraseBlocked, Phrase: r.Phrase}
			}
			continue
		}

		if rewritten, ok := replaceAllFold(cur, r.Phrase, r.Replace); ok {
			cur = rewritten
			changed = true
		}
	}

	if changed {
		return PhraseResult{Outcome: PhraseRewritten, Text: cur}
	}
	return PhraseResult{Outcome: PhraseUnchanged, Text: text}
}

// replaceAllFold substitutes every case-insensitive occurrence of phrase
// in s with repl, scanning left to right and resuming after each
// replacement so a replacement containing its own phrase cannot loop.
func replaceAllFold(s, phrase, repl string) (string, bool) {
	j := foldIndex(s, phrase, 0)
	if j < 0 {
		return s, false
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for j >= 0 {
		b.WriteString(s[i:j])
		b.WriteString(repl)
		i = j + len(phrase)
		j = foldIndex(s, phrase, i)
	}
	b.WriteString(s[i:])
	return b.String(), true
}

// foldIndex returns the byte index of the first occurrence of substr in s
// at or after from, comparing under the ASCII casemap, or -1.
func foldIndex(s, substr string, from int) int {
	if substr == "" || from > len(s)-len(substr) {
		return -1
	}
	for i := from; i+len(substr) <= len(s); i++ {
		if foldEqual(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func foldEqual(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerByte(a[i]) != lowerByte(b[i]) {
			return false
		}
	}
	return true
}

func lowerByte(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
