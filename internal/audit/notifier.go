// Package audit emits the operator-facing notices for blocked messages
// and connection-time detections. One line per event, published on the
// 'a' snomask through the host's server notice system.
package audit

import (
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/revrsedev/inspircd-mods-contrib/internal/hostapi"
	"github.com/revrsedev/inspircd-mods-contrib/internal/metrics"
)

// maxLine is the IRC line budget for a notice: 512 bytes minus CRLF.
const maxLine = 510

// SnoticeWriter publishes one oper notice line on a snomask. Implemented
// by messaging.Client.
type SnoticeWriter interface {
	PublishSnotice(mask byte, line string) error
}

// Notifier formats and publishes oper announcements.
type Notifier struct {
	w SnoticeWriter
}

// NewNotifier creates a Notifier publishing through w.
func NewNotifier(w SnoticeWriter) *Notifier {
	return &Notifier{w: w}
}

// DisallowedCharset announces a message blocked by the mixed-script or
// character-set checks.
func (n *Notifier) DisallowedCharset(sender hostapi.Sender, target hostapi.Target, text string) {
	var line string
	if target.Kind == hostapi.TargetChannel {
		line = fmt.Sprintf("MixedCharacterUTF8: User %s in channel %s sent a message containing disallowed characters: '%s', which was blocked.",
			sender.Nick, target.Name, text)
	} else {
		line = fmt.Sprintf("MixedCharacterUTF8: User %s sent a private message to %s containing disallowed characters: '%s', which was blocked.",
			sender.Nick, target.Name, text)
	}
	n.send(line)
}

// BannedPhrase announces a message blocked by a censor rule.
func (n *Notifier) BannedPhrase(sender hostapi.Sender, target hostapi.Target, phrase, text string) {
	var line string
	if target.Kind == hostapi.TargetChannel {
		line = fmt.Sprintf("CensorPlus: User %s in channel %s sent a message containing banned phrase (%s): '%s', which was blocked.",
			sender.Nick, target.Name, phrase, text)
	} else {
		line = fmt.Sprintf("CensorPlus: User %s sent a private message to %s containing banned phrase (%s): '%s', which was blocked.",
			sender.Nick, target.Name, phrase, text)
	}
	n.send(line)
}

// FakeWebSocket announces a connection rejected for a disallowed Origin.
func (n *Notifier) FakeWebSocket(ip, origin string) {
	n.send(fmt.Sprintf("DetectFakeWebSocket: Connection from %s presented disallowed WebSocket origin '%s' and was rejected.", ip, origin))
}

// XLineUsed announces a decorated oper command.
func (n *Notifier) XLineUsed(source hostapi.Sender, command, mask, reason string) {
	n.send(fmt.Sprintf("%s %s %s: %s", source.Nick, command, mask, reason))
}

func (n *Notifier) send(line string) {
	line = Truncate(line, maxLine)
	if err := n.w.PublishSnotice('a', line); err != nil {
		log.Printf("[audit] snotice publish failed: %v", err)
		return
	}
	metrics.SnoticesSent.Inc()
}

// Truncate clips s to at most max bytes without splitting a UTF-8
// sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
