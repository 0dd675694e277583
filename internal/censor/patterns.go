package censor

import (
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// EngineVersion identifies the matcher engines behind compiled patterns.
// Cached translated sources are only trusted when this matches the version
// recorded alongside them; bump it whenever the translation table or an
// engine is changed in a way that affects matching.
const EngineVersion = "re2/1+regexp2/1.11"

// matchTimeout bounds a single regexp2 match. The whitelist check runs on
// RE2 and needs no timeout; the emoji/emoticon matchers backtrack, and a
// pathological configured pattern must not stall the message path.
const matchTimeout = 100 * time.Millisecond

// TranslationCache persists translated pattern sources across reloads.
// Implementations are expected to be best-effort: a miss or a failed put
// only costs a re-translation.
type TranslationCache interface {
	Get(src string) (translated string, ok bool)
	Put(src, translated string)
}

// PatternSet holds the three compiled matchers used by the charset checks.
// All matchers are whole-string: a match must consume the entire input.
//
// A PatternSet is immutable after CompileAll and safe for concurrent use:
// both engines keep per-match state internally (RE2 machines and regexp2
// runners are pooled per call), so Evaluate never shares mutable scratch
// between goroutines and never allocates matcher state per message beyond
// what the engines pool themselves.
type PatternSet struct {
	whitelist *regexp.Regexp
	emoji     *regexp2.Regexp
	emoticon  *regexp2.Regexp
}

// CompileAll translates and compiles the three pattern sources. Any
// compile failure is a configuration error and aborts activation; nothing
// is compiled lazily at match time. cache may be nil to skip caching.
func CompileAll(whitelistSrc, emojiSrc, emoticonSrc string, cache TranslationCache) (*PatternSet, error) {
	ps := &PatternSet{}

	wl, err := regexp.Compile(wholeString(translate(whitelistSrc, cache)))
	if err != nil {
		return nil, fmt.Errorf("censor: compile whitelist pattern %q: %w", whitelistSrc, err)
	}
	ps.whitelist = wl

	ps.emoji, err = compile2(emojiSrc, cache)
	if err != nil {
		return nil, fmt.Errorf("censor: compile emoji pattern %q: %w", emojiSrc, err)
	}

	ps.emoticon, err = compile2(emoticonSrc, cache)
	if err != nil {
		return nil, fmt.Errorf("censor: compile emoticon pattern %q: %w", emoticonSrc, err)
	}

	return ps, nil
}

func compile2(src string, cache TranslationCache) (*regexp2.Regexp, error) {
	// RE2 compatibility mode gives regexp2 the same \x{...} escape syntax
	// the whitelist engine uses, so one translated source form serves both.
	re, err := regexp2.Compile(wholeString(translate(src, cache)), regexp2.RE2)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// translate runs TranslatePattern through the cache: reload-time hits skip
// the rewrite, misses are stored for the next reload.
func translate(src string, cache TranslationCache) string {
	if cache != nil {
		if translated, ok := cache.Get(src); ok {
			return translated
		}
	}
	translated := TranslatePattern(src)
	if cache != nil {
		cache.Put(src, translated)
	}
	return translated
}

// wholeString anchors a pattern at both ends so a match must consume the
// entire input, mirroring ICU's RegexMatcher::matches semantics.
func wholeString(src string) string {
	return `\A(?:` + src + `)\z`
}

// MatchesWhitelist reports a whole-string match against the whitelist
// character-class pattern.
func (p *PatternSet) MatchesWhitelist(text string) bool {
	if !utf8.ValidString(text) {
		// The matcher cannot meaningfully classify broken encodings;
		// treat as non-matching so the message stays blocked unless a
		// later check passes.
		log.Printf("[censor] whitelist match skipped: input is not valid UTF-8")
		return false
	}
	return p.whitelist.MatchString(text)
}

// MatchesEmojiOnly reports a whole-string match against the emoji pattern.
func (p *PatternSet) MatchesEmojiOnly(text string) bool {
	return p.match2(p.emoji, "emoji", text)
}

// MatchesEmoticonOnly reports a whole-string match against the
// emoticon/smiley pattern.
func (p *PatternSet) MatchesEmoticonOnly(text string) bool {
	return p.match2(p.emoticon, "emoticon", text)
}

func (p *PatternSet) match2(re *regexp2.Regexp, name, text string) bool {
	ok, err := re.MatchString(text)
	if err != nil {
		// Timeout or internal engine failure: never allow on error.
		log.Printf("[censor] %s match failed: %v", name, err)
		return false
	}
	return ok
}

// IsAllowed decides whether the message's character set is acceptable.
// Printable-ASCII messages are allowed without touching any matcher; this
// is the overwhelming majority of traffic. Everything else must wholly
// match the whitelist, emoji, or emoticon pattern.
func (p *PatternSet) IsAllowed(text string) bool {
	if printableASCII(text) {
		return true
	}
	return p.MatchesWhitelist(text) || p.MatchesEmojiOnly(text) || p.MatchesEmoticonOnly(text)
}

func printableASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] > 0x7E {
			return false
		}
	}
	return true
}
