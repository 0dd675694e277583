package censor

import "unicode"

// Script buckets for the mixed-script heuristic.
const (
	scriptUnknown = iota
	scriptLatin
	scriptOther
)

// IsMixedScript reports whether text mixes Latin letters with letters from
// any other script, a common impersonation/spam signal. ASCII and
// non-ASCII Latin letters land in one bucket, every other alphabetic
// codepoint in the second; the first classified letter fixes the detected
// bucket and the first letter from the opposite bucket short-circuits to
// true. Non-letters never participate.
//
// Known limitation: two non-Latin scripts mixed together (say Cyrillic
// with Greek) share the "other" bucket and are not flagged.
func IsMixedScript(text string) bool {
	detected := scriptUnknown

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}

		current := scriptOther
		if r < 128 || unicode.Is(unicode.Latin, r) {
			current = scriptLatin
		}

		if detected == scriptUnknown {
			detected = current
		} else if detected != current {
			return true
		}
	}

	return false
}
