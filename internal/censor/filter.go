// Package censor implements the message content-filtering engine behind
// the censorplus module: a mixed-script heuristic, whole-string pattern
// matching for non-ASCII messages (whitelist, emoji, emoticon), and an
// ordered banned-phrase rewriter. The host consults Evaluate from its
// outbound-message hook and acts on the verdict; the engine itself
// performs no I/O on the message path.
package censor

import (
	"log"
	"sync/atomic"

	"github.com/revrsedev/inspircd-mods-contrib/internal/hostapi"
)

// Verdict actions.
type Action int

const (
	// Allow delivers the message unchanged.
	Allow Action = iota
	// Rewrite delivers the message with Verdict.Text substituted.
	Rewrite
	// Deny suppresses the message; the host notifies the sender with
	// Verdict.Reason.
	Deny
)

// Deny reasons.
const (
	ReasonDisallowedCharset = "disallowed character set"
	ReasonBannedPhrase      = "banned phrase"
	ReasonInternalError     = "internal filter error"
)

// Verdict is the per-message filtering decision. It owns no shared state
// and is dropped once the caller has acted on it.
type Verdict struct {
	Action Action
	Text   string // original or rewritten message
	Reason string // set for Deny
	Phrase string // matched banned phrase, if the denial came from one
}

// Snapshot is one immutable configuration generation: the phrase rules and
// the compiled pattern set. A snapshot is never mutated after publication;
// reload builds a new one and swaps it in.
type Snapshot struct {
	Rules    *RuleSet
	Patterns *PatternSet
}

// Filter is the orchestrator consumed by the message-send hook. The
// current snapshot is published through an atomic pointer: in-flight
// Evaluate calls keep the snapshot they captured at entry, so a reload
// can never produce a torn read and the read path takes no locks.
type Filter struct {
	current atomic.Pointer[Snapshot]
}

// NewFilter creates a Filter serving the given snapshot.
func NewFilter(snap *Snapshot) *Filter {
	f := &Filter{}
	f.current.Store(snap)
	return f
}

// Swap atomically publishes a new snapshot. Calls already inside Evaluate
// finish against the snapshot they started with.
func (f *Filter) Swap(snap *Snapshot) {
	f.current.Swap(snap)
}

// Current returns the currently published snapshot.
func (f *Filter) Current() *Snapshot {
	return f.current.Load()
}

// Evaluate classifies one outbound message. Exempt senders (opers, targets
// without the censor mode, host-granted exemptions) pass untouched; then
// the character-set checks run, then the phrase rules. Any unexpected
// internal failure resolves to Deny, never to an unfiltered Allow.
func (f *Filter) Evaluate(sender hostapi.Sender, target hostapi.Target, text string) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[censor] panic during evaluate: %v", r)
			verdict = Verdict{Action: Deny, Reason: ReasonInternalError}
		}
	}()

	snap := f.current.Load()

	if sender.Oper || !target.CensorMode || target.Exempt {
		return Verdict{Action: Allow, Text: text}
	}

	if IsMixedScript(text) || !snap.Patterns.IsAllowed(text) {
		return Verdict{Action: Deny, Reason: ReasonDisallowedCharset}
	}

	switch res := snap.Rules.Evaluate(text); res.Outcome {
	case PhraseBlocked:
		return Verdict{Action: Deny, Reason: ReasonBannedPhrase, Phrase: res.Phrase}
	case PhraseRewritten:
		return Verdict{Action: Rewrite, Text: res.Text}
	default:
		return Verdict{Action: Allow, Text: text}
	}
}
