// Package xlines decorates Z-line/G-line/KILL reasons with a random audit
// ID so a specific ban or kill can be found in the logs later.
package xlines

import (
	"strings"

	"github.com/google/uuid"

	"github.com/revrsedev/inspircd-mods-contrib/internal/audit"
)

// maxReason is the reason budget: 510 bytes leaves room for the CRLF the
// host appends to the line.
const maxReason = 510

// Decorator rewrites the parameters of hooked oper commands.
type Decorator struct {
	commands map[string]bool
}

// New creates a Decorator for the given command names (case-insensitive).
func New(commands []string) *Decorator {
	m := make(map[string]bool, len(commands))
	for _, c := range commands {
		m[strings.ToUpper(c)] = true
	}
	return &Decorator{commands: m}
}

// Handles reports whether command gets decorated.
func (d *Decorator) Handles(command string) bool {
	return d.commands[strings.ToUpper(command)]
}

// Apply returns the command parameters with the reason decorated. The
// reason is the second parameter when present (the first is the mask or
// nick); a command issued without a reason gets one holding just the ID.
func (d *Decorator) Apply(params []string) []string {
	out := make([]string, len(params))
	copy(out, params)

	if len(out) > 1 {
		out[1] = DecorateReason(out[1])
		return out
	}
	return append(out, DecorateReason(""))
}

// DecorateReason appends " - ID: <uuid>" to reason, clipping the original
// reason first so the result fits the line budget.
func DecorateReason(reason string) string {
	id := " - ID: " + uuid.NewString()
	if len(reason)+len(id) > maxReason {
		reason = audit.Truncate(reason, maxReason-len(id))
	}
	return reason + id
}
