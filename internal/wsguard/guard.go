// Package wsguard detects botnets faking WebSocket connections. The
// connect hook supplies the Origin header the host's websocket transport
// recorded for the user; an origin outside the allowlist earns a Z-line
// recommendation and an oper notice. The guard also runs a decoy listener
// on the advertised websocket port so scanners that never reach
// registration are caught at handshake time.
package wsguard

import (
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/gobwas/ws"

	"github.com/revrsedev/inspircd-mods-contrib/internal/hostapi"
	"github.com/revrsedev/inspircd-mods-contrib/internal/metrics"
)

// Reporter receives one notice per rejected connection. Implemented by
// audit.Notifier.
type Reporter interface {
	FakeWebSocket(ip, origin string)
}

// Config holds the guard's settings from the wsguard config section.
type Config struct {
	Origins     []string
	ZLineSecs   int
	ZLineReason string
}

// Decision is the guard's verdict for a registering connection.
type Decision struct {
	Allow bool
	ZLine *hostapi.ZLine
}

// Guard validates WebSocket origins.
type Guard struct {
	cfg      Config
	reporter Reporter
}

// New creates a Guard reporting rejections through reporter.
func New(cfg Config, reporter Reporter) *Guard {
	return &Guard{cfg: cfg, reporter: reporter}
}

// AllowedOrigin reports whether origin contains any allowlisted origin as
// a substring, so "https://kiwiirc.com" passes an allowlist entry of
// "kiwiirc.com" without the operator spelling out every scheme and path.
func (g *Guard) AllowedOrigin(origin string) bool {
	for _, allowed := range g.cfg.Origins {
		if strings.Contains(origin, allowed) {
			return true
		}
	}
	return false
}

// CheckOrigin decides the fate of a registering connection. An empty
// origin means the connection did not come through the websocket
// transport and is none of the guard's business.
func (g *Guard) CheckOrigin(ip, origin string) Decision {
	if origin == "" {
		return Decision{Allow: true}
	}
	if g.AllowedOrigin(origin) {
		return Decision{Allow: true}
	}

	metrics.WSGuardRejections.Inc()
	if g.reporter != nil {
		g.reporter.FakeWebSocket(ip, origin)
	}
	return Decision{
		Allow: false,
		ZLine: &hostapi.ZLine{
			DurationSecs: g.cfg.ZLineSecs,
			Reason:       g.cfg.ZLineReason,
		},
	}
}

// Handler returns the decoy endpoint. Disallowed origins are rejected and
// reported before the upgrade; allowed origins get a clean handshake
// followed by a normal close, since the decoy serves no frames.
func (g *Guard) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		ip := remoteIP(r.RemoteAddr)

		if !g.AllowedOrigin(origin) {
			metrics.WSGuardRejections.Inc()
			if g.reporter != nil {
				g.reporter.FakeWebSocket(ip, origin)
			}
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			log.Printf("[wsguard] upgrade from %s failed: %v", ip, err)
			return
		}

		frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		if err := ws.WriteFrame(conn, frame); err != nil {
			log.Printf("[wsguard] close frame to %s failed: %v", ip, err)
		}
		conn.Close()
	})
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
