package censor

import "strings"

// emojiClass is the expansion of the ICU \p{Emoji} property used by the
// module's stock pattern sources. Neither RE2 nor regexp2 knows the Emoji
// property, so occurrences are rewritten to these explicit ranges before
// compilation. Ranges cover the pictographic blocks plus the handful of
// BMP scalars (©, ®, ™, keycap combiner, ZWJ, variation selectors) that
// real emoji sequences contain.
const emojiClass = `\x{00A9}\x{00AE}\x{200D}\x{203C}\x{2049}\x{20E3}\x{2122}\x{2139}` +
	`\x{2194}-\x{21AA}\x{2300}-\x{23FF}\x{24C2}\x{25A0}-\x{25FF}` +
	`\x{2600}-\x{27BF}\x{2934}\x{2935}\x{2B00}-\x{2BFF}\x{3030}\x{303D}` +
	`\x{3297}\x{3299}\x{FE00}-\x{FE0F}\x{1F000}-\x{1F0FF}\x{1F100}-\x{1F1FF}` +
	`\x{1F200}-\x{1F2FF}\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}` +
	`\x{1F680}-\x{1F6FF}\x{1F700}-\x{1F77F}\x{1F780}-\x{1F7FF}` +
	`\x{1F800}-\x{1F8FF}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FAFF}`

// unsupported ICU property classes and their translations. Longer names
// first so \p{Emoji_Presentation} is not clipped by the \p{Emoji} rewrite.
var propertyRewrites = []struct {
	from string
	to   string
}{
	{`\p{Emoji_Presentation}`, emojiClass},
	{`\p{Emoji}`, emojiClass},
}

// TranslatePattern rewrites ICU-only property classes in an ICU-style
// pattern source into forms RE2 and regexp2 accept. Sources without such
// classes pass through unchanged. The translated form is what gets
// compiled and what the pattern cache stores.
func TranslatePattern(src string) string {
	for _, pr := range propertyRewrites {
		src = strings.ReplaceAll(src, pr.from, pr.to)
	}
	return src
}
