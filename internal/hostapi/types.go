// Package hostapi defines the JSON wire types exchanged with the IRC host
// over the hook subjects. The host serialises its callback arguments
// (message pre-send, connection registration, command dispatch) into these
// structures and consumes the replies; the bundle never touches the host's
// own user or channel objects.
package hostapi

// Target kinds, matching the host's message target discriminator.
const (
	TargetUser    = "user"
	TargetChannel = "channel"
)

// Reply actions for a message check.
const (
	ActionAllow   = "allow"
	ActionRewrite = "rewrite"
	ActionDeny    = "deny"
)

// Sender identifies the local user that triggered a hook.
type Sender struct {
	Nick  string `json:"nick"`
	Ident string `json:"ident"`
	Host  string `json:"host"`
	IP    string `json:"ip"`
	Oper  bool   `json:"oper"`
}

// Target describes where an outbound message is headed. CensorMode reports
// whether the censor user/channel mode (+G) is set on the target; Exempt is
// the host-side exemption result (chanop override and friends) which the
// host resolves before publishing the hook.
type Target struct {
	Kind       string `json:"kind"` // TargetUser or TargetChannel
	Name       string `json:"name"`
	CensorMode bool   `json:"censor_mode"`
	Exempt     bool   `json:"exempt"`
}

// MessageCheckRequest is published to hook.message.check before the host
// delivers an outbound PRIVMSG/NOTICE.
type MessageCheckRequest struct {
	Sender Sender `json:"sender"`
	Target Target `json:"target"`
	Text   string `json:"text"`
}

// MessageCheckReply tells the host what to do with the message. Text is
// only meaningful for ActionRewrite; Reason and Phrase are only set for
// ActionDeny and are what the host shows the sender.
type MessageCheckReply struct {
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
	Phrase string `json:"phrase,omitempty"`
}

// ConnectCheckRequest is published to hook.connect.check when a user
// finishes registration. Origin carries the WebSocket Origin header when
// the connection came through the host's websocket transport, empty
// otherwise.
type ConnectCheckRequest struct {
	Nick   string `json:"nick"`
	IP     string `json:"ip"`
	Port   int    `json:"port"`
	Origin string `json:"origin,omitempty"`
}

// ZLine is a ban recommendation attached to a connect rejection.
type ZLine struct {
	DurationSecs int    `json:"duration_secs"`
	Reason       string `json:"reason"`
}

// ConnectCheckReply is the verdict for a registering connection. Ident,
// when non-empty, is the hashed ident the host should assign to the user.
type ConnectCheckReply struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
	Ident  string `json:"ident,omitempty"`
	ZLine  *ZLine `json:"zline,omitempty"`
}

// CommandRequest is published to cmd.<command> before the host executes an
// oper command the bundle has hooked (ZLINE, GLINE, KILL, WIKI, ...).
type CommandRequest struct {
	Source  Sender   `json:"source"`
	Command string   `json:"command"`
	Params  []string `json:"params"`
}

// CommandReply carries rewritten command parameters and an optional notice
// to send back to the command's source.
type CommandReply struct {
	Params []string `json:"params,omitempty"`
	Notice string   `json:"notice,omitempty"`
}
