package censor

import (
	"sync"
	"testing"

	"github.com/revrsedev/inspircd-mods-contrib/internal/hostapi"
)

func testSnapshot(t *testing.T, rules ...Rule) *Snapshot {
	t.Helper()
	rs, err := NewRuleSet(rules)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	ps, err := CompileAll(testWhitelist, testEmoji, testEmoticon, nil)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	return &Snapshot{Rules: rs, Patterns: ps}
}

func plainSender() hostapi.Sender {
	return hostapi.Sender{Nick: "alice", Ident: "alice", Host: "example.net"}
}

func censoredChannel() hostapi.Target {
	return hostapi.Target{Kind: hostapi.TargetChannel, Name: "#chat", CensorMode: true}
}

func TestEvaluate_ExemptionsSkipAllChecks(t *testing.T) {
	f := NewFilter(testSnapshot(t, Rule{Phrase: "bad", Replace: ""}))

	// "badД" would fail every check for a non-exempt sender.
	text := "badД"

	tests := []struct {
		name   string
		sender hostapi.Sender
		target hostapi.Target
	}{
		{"oper bypass", hostapi.Sender{Nick: "oper", Oper: true}, censoredChannel()},
		{"censor mode unset", plainSender(), hostapi.Target{Kind: hostapi.TargetChannel, Name: "#chat"}},
		{"host exemption", plainSender(), hostapi.Target{Kind: hostapi.TargetChannel, Name: "#chat", CensorMode: true, Exempt: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Evaluate(tt.sender, tt.target, text)
			if v.Action != Allow {
				t.Fatalf("action = %v, want Allow", v.Action)
			}
			if v.Text != text {
				t.Errorf("text = %q, want original", v.Text)
			}
		})
	}
}

func TestEvaluate_DisallowedCharset(t *testing.T) {
	f := NewFilter(testSnapshot(t))

	tests := []struct {
		name  string
		input string
	}{
		{"mixed script", "helloД"},
		{"non-ascii failing all patterns", "Привет"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Evaluate(plainSender(), censoredChannel(), tt.input)
			if v.Action != Deny {
				t.Fatalf("action = %v, want Deny", v.Action)
			}
			if v.Reason != ReasonDisallowedCharset {
				t.Errorf("reason = %q, want %q", v.Reason, ReasonDisallowedCharset)
			}
		})
	}
}

func TestEvaluate_PhraseOutcomes(t *testing.T) {
	f := NewFilter(testSnapshot(t,
		Rule{Phrase: "bad", Replace: "good"},
		Rule{Phrase: "forbidden", Replace: ""},
	))

	t.Run("allow", func(t *testing.T) {
		v := f.Evaluate(plainSender(), censoredChannel(), "a clean message")
		if v.Action != Allow || v.Text != "a clean message" {
			t.Errorf("got %+v, want Allow with original text", v)
		}
	})

	t.Run("rewrite", func(t *testing.T) {
		v := f.Evaluate(plainSender(), censoredChannel(), "this is bad, very bad")
		if v.Action != Rewrite {
			t.Fatalf("action = %v, want Rewrite", v.Action)
		}
		if v.Text != "this is good, very good" {
			t.Errorf("text = %q, want all occurrences replaced", v.Text)
		}
	})

	t.Run("deny names the phrase", func(t *testing.T) {
		v := f.Evaluate(plainSender(), censoredChannel(), "totally forbidden words")
		if v.Action != Deny {
			t.Fatalf("action = %v, want Deny", v.Action)
		}
		if v.Reason != ReasonBannedPhrase || v.Phrase != "forbidden" {
			t.Errorf("got reason=%q phrase=%q, want %q/%q", v.Reason, v.Phrase, ReasonBannedPhrase, "forbidden")
		}
	})

	t.Run("deny on user target with censor mode", func(t *testing.T) {
		target := hostapi.Target{Kind: hostapi.TargetUser, Name: "bob", CensorMode: true}
		v := f.Evaluate(plainSender(), target, "forbidden")
		if v.Action != Deny {
			t.Errorf("action = %v, want Deny", v.Action)
		}
	})
}

// A reload mid-flight must never mix two snapshots inside one Evaluate:
// with snapshot A rewriting a->1/b->2 and snapshot B rewriting a->3/b->4,
// the only legal results for "a b" are "1 2" and "3 4".
func TestEvaluate_SnapshotConsistencyUnderReload(t *testing.T) {
	snapA := testSnapshot(t, Rule{Phrase: "a", Replace: "1"}, Rule{Phrase: "b", Replace: "2"})
	snapB := testSnapshot(t, Rule{Phrase: "a", Replace: "3"}, Rule{Phrase: "b", Replace: "4"})

	f := NewFilter(snapA)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	swapperDone := make(chan struct{})

	go func() {
		defer close(swapperDone)
		cur := snapB
		for {
			select {
			case <-stop:
				return
			default:
				f.Swap(cur)
				if cur == snapA {
					cur = snapB
				} else {
					cur = snapA
				}
			}
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				v := f.Evaluate(plainSender(), censoredChannel(), "a b")
				if v.Action != Rewrite {
					t.Errorf("action = %v, want Rewrite", v.Action)
					return
				}
				if v.Text != "1 2" && v.Text != "3 4" {
					t.Errorf("text = %q, want a result from exactly one snapshot", v.Text)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	<-swapperDone
}

func TestEvaluate_NilPatternsResolvesToDeny(t *testing.T) {
	rs, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	// A snapshot with no compiled patterns is a wiring bug; the panic must
	// resolve to Deny, never to an unfiltered Allow.
	f := NewFilter(&Snapshot{Rules: rs})

	v := f.Evaluate(plainSender(), censoredChannel(), "Привет")
	if v.Action != Deny {
		t.Fatalf("action = %v, want Deny", v.Action)
	}
	if v.Reason != ReasonInternalError {
		t.Errorf("reason = %q, want %q", v.Reason, ReasonInternalError)
	}
}
