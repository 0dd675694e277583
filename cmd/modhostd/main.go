// modhostd runs the contrib module bundle as a sidecar to the IRC host:
// it serves the hook subjects over NATS (message checks, connect checks,
// command decoration), the JSON-RPC endpoint, the WebSocket decoy, and
// the Prometheus endpoint. SIGHUP reloads the configuration and swaps in
// a fresh filter snapshot without dropping in-flight checks.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/revrsedev/inspircd-mods-contrib/internal/audit"
	"github.com/revrsedev/inspircd-mods-contrib/internal/captcha"
	"github.com/revrsedev/inspircd-mods-contrib/internal/censor"
	"github.com/revrsedev/inspircd-mods-contrib/internal/config"
	"github.com/revrsedev/inspircd-mods-contrib/internal/hostapi"
	"github.com/revrsedev/inspircd-mods-contrib/internal/ident"
	"github.com/revrsedev/inspircd-mods-contrib/internal/messaging"
	"github.com/revrsedev/inspircd-mods-contrib/internal/metrics"
	"github.com/revrsedev/inspircd-mods-contrib/internal/offense"
	"github.com/revrsedev/inspircd-mods-contrib/internal/patterncache"
	"github.com/revrsedev/inspircd-mods-contrib/internal/rpc"
	"github.com/revrsedev/inspircd-mods-contrib/internal/wiki"
	"github.com/revrsedev/inspircd-mods-contrib/internal/wsguard"
	"github.com/revrsedev/inspircd-mods-contrib/internal/xlines"
)

func main() {
	log.Println("Starting inspircd-mods host daemon...")

	defaults := config.Default()
	fs := pflag.NewFlagSet("modhostd", pflag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to the TOML configuration file")
	migrateOnly := fs.Bool("migrate", false, "apply database migrations and exit")
	fs.String("nats.url", defaults.NATS.URL, "NATS server URL")
	fs.String("redis.addr", defaults.Redis.Addr, "Redis address")
	fs.String("metrics.listen", defaults.Metrics.Listen, "Prometheus listen address")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.LoadWith(*configPath, fs)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *migrateOnly {
		runMigrations(cfg)
		return
	}

	// Pattern translation cache. Failures only cost the cached
	// translations, so a broken cache file never blocks startup.
	var cache *patterncache.Cache
	if cfg.Censor.PatternCache != "" {
		cache, err = patterncache.Open(cfg.Censor.PatternCache, censor.EngineVersion)
		if err != nil {
			log.Printf("[main] pattern cache disabled: %v", err)
			cache = nil
		}
	}

	filter, err := buildFilter(cfg, cache)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Redis setup.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[main] redis unavailable: %v (caches disabled)", err)
		rdb = nil
	}
	cancel()

	// NATS setup.
	natsCfg := messaging.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = cfg.NATS.Name
	nc, err := messaging.NewClient(natsCfg)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	notifier := audit.NewNotifier(nc)
	idents := ident.New(cfg.Ident.HashSecret, identRules(cfg))
	decorator := xlines.New(cfg.XLines.Commands)

	var gate *captcha.Gate
	var pg *captcha.PGStore
	if cfg.Captcha.Enabled {
		openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err = captcha.OpenPG(openCtx, cfg.Captcha.Conninfo)
		cancel()
		if err != nil {
			log.Fatalf("failed to connect to CAPTCHA database: %v", err)
		}
		gate = captcha.NewGate(pg, rdb, captcha.Config{
			Ports:       cfg.Captcha.Ports,
			URL:         cfg.Captcha.URL,
			CacheTTL:    cfg.Captcha.CacheTTL,
			MaxAttempts: cfg.Captcha.MaxAttempts,
		})
	}

	var guard *wsguard.Guard
	var offenses *offense.Tracker
	if cfg.WSGuard.Enabled {
		guard = wsguard.New(wsguard.Config{
			Origins:     cfg.WSGuard.Origins,
			ZLineSecs:   cfg.WSGuard.ZLineSecs,
			ZLineReason: cfg.WSGuard.ZLineReason,
		}, notifier)
		if rdb != nil {
			offenses = offense.NewTracker(rdb)
		}
		go serveHTTP("wsguard", cfg.WSGuard.Listen, guard.Handler())
	}

	var wikis *wiki.Store
	if cfg.Wiki.Enabled {
		wikis = wiki.New(context.Background(), cfg.Wiki.BaseURL, cfg.Wiki.Slugs, rdb)
	}

	// Hook subscriptions.
	if err := nc.QueueSubscribe(messaging.SubjectMessageCheck, messageCheckHandler(filter, notifier)); err != nil {
		log.Fatalf("%v", err)
	}
	if err := nc.QueueSubscribe(messaging.SubjectConnectCheck, connectCheckHandler(gate, guard, offenses, idents)); err != nil {
		log.Fatalf("%v", err)
	}
	for _, command := range cfg.XLines.Commands {
		if err := nc.SubscribeCommand(command, xlineHandler(decorator, notifier)); err != nil {
			log.Fatalf("%v", err)
		}
	}
	if wikis != nil {
		if err := nc.SubscribeCommand("WIKI", wikiHandler(wikis)); err != nil {
			log.Fatalf("%v", err)
		}
	}

	if cfg.RPC.Enabled {
		srv := rpc.NewServer(cfg.RPC.User, cfg.RPC.Password)
		registerRPC(srv, filter)
		go serveHTTP("jsonrpc", cfg.RPC.Listen, srv.Handler())
	}

	go serveHTTP("metrics", cfg.Metrics.Listen, metrics.Handler())

	log.Printf("inspircd-mods host daemon running")
	log.Printf("  config:     %s", *configPath)
	log.Printf("  nats_url:   %s", cfg.NATS.URL)
	log.Printf("  redis_addr: %s", cfg.Redis.Addr)
	log.Printf("  badwords:   %d", len(cfg.Badwords))

	// Reload on SIGHUP, shut down on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			log.Printf("received signal %v, shutting down...", sig)
			break
		}
		reload(*configPath, fs, filter, cache)
	}

	nc.Close()
	if rdb != nil {
		rdb.Close()
	}
	if pg != nil {
		pg.Close()
	}
	if cache != nil {
		cache.Close()
	}
}

// buildFilter compiles the pattern set and phrase rules from cfg into a
// ready Filter.
func buildFilter(cfg *config.Config, cache *patterncache.Cache) (*censor.Filter, error) {
	snap, err := buildSnapshot(cfg, cache)
	if err != nil {
		return nil, err
	}
	return censor.NewFilter(snap), nil
}

func buildSnapshot(cfg *config.Config, cache *patterncache.Cache) (*censor.Snapshot, error) {
	patterns, err := censor.CompileAll(cfg.Censor.WhitelistRegex, cfg.Censor.EmojiRegex, cfg.Censor.EmoticonRegex, cache)
	if err != nil {
		metrics.PatternCompiles.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PatternCompiles.WithLabelValues("ok").Inc()

	rules := make([]censor.Rule, 0, len(cfg.Badwords))
	for _, bw := range cfg.Badwords {
		rules = append(rules, censor.Rule{Phrase: bw.Text, Replace: bw.Replace})
	}
	ruleSet, err := censor.NewRuleSet(rules)
	if err != nil {
		return nil, err
	}

	return &censor.Snapshot{Rules: ruleSet, Patterns: patterns}, nil
}

// reload re-reads the configuration and swaps in a new snapshot. A bad
// config keeps the old snapshot serving; nothing is torn down halfway.
func reload(path string, fs *pflag.FlagSet, filter *censor.Filter, cache *patterncache.Cache) {
	log.Printf("[main] SIGHUP: reloading %s", path)

	cfg, err := config.LoadWith(path, fs)
	if err != nil {
		log.Printf("[main] reload failed, keeping current config: %v", err)
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		return
	}

	snap, err := buildSnapshot(cfg, cache)
	if err != nil {
		log.Printf("[main] reload failed, keeping current snapshot: %v", err)
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		return
	}

	filter.Swap(snap)
	metrics.ConfigReloads.WithLabelValues("ok").Inc()
	log.Printf("[main] reload complete: %d badwords", snap.Rules.Len())
}

func runMigrations(cfg *config.Config) {
	if cfg.Captcha.Conninfo == "" {
		log.Fatal("--migrate requires captcha.conninfo")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := captcha.OpenPG(ctx, cfg.Captcha.Conninfo)
	if err != nil {
		log.Fatalf("failed to connect to CAPTCHA database: %v", err)
	}
	defer pg.Close()

	if err := captcha.Migrate(pg); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	log.Println("migrations applied")
}

// messageCheckHandler serves hook.message.check: one Evaluate per request,
// verdict mapped onto the wire reply, denials announced to opers.
func messageCheckHandler(filter *censor.Filter, notifier *audit.Notifier) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		var req hostapi.MessageCheckRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("[hook] bad message check request: %v", err)
			respond(msg, hostapi.MessageCheckReply{Action: hostapi.ActionAllow})
			return
		}

		start := time.Now()
		verdict := filter.Evaluate(req.Sender, req.Target, req.Text)
		metrics.FilterLatency.Observe(time.Since(start).Seconds())

		var reply hostapi.MessageCheckReply
		switch verdict.Action {
		case censor.Rewrite:
			metrics.FilterVerdicts.WithLabelValues("rewrite").Inc()
			reply = hostapi.MessageCheckReply{Action: hostapi.ActionRewrite, Text: verdict.Text}
		case censor.Deny:
			reply = hostapi.MessageCheckReply{
				Action: hostapi.ActionDeny,
				Reason: verdict.Reason,
				Phrase: verdict.Phrase,
			}
			switch verdict.Reason {
			case censor.ReasonDisallowedCharset:
				metrics.FilterVerdicts.WithLabelValues("deny_charset").Inc()
				notifier.DisallowedCharset(req.Sender, req.Target, req.Text)
			case censor.ReasonBannedPhrase:
				metrics.FilterVerdicts.WithLabelValues("deny_phrase").Inc()
				notifier.BannedPhrase(req.Sender, req.Target, verdict.Phrase, req.Text)
			default:
				metrics.FilterVerdicts.WithLabelValues("deny_internal").Inc()
			}
		default:
			metrics.FilterVerdicts.WithLabelValues("allow").Inc()
			reply = hostapi.MessageCheckReply{Action: hostapi.ActionAllow}
		}
		respond(msg, reply)
	}
}

// connectCheckHandler serves hook.connect.check: CAPTCHA gate, WebSocket
// origin check with escalating Z-line durations for repeat offenders,
// hashed ident assignment.
func connectCheckHandler(gate *captcha.Gate, guard *wsguard.Guard, offenses *offense.Tracker, idents *ident.Manager) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		var req hostapi.ConnectCheckRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("[hook] bad connect check request: %v", err)
			respond(msg, hostapi.ConnectCheckReply{Allow: true})
			return
		}

		reply := hostapi.ConnectCheckReply{Allow: true}

		if gate != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			decision := gate.CheckConnect(ctx, req.IP, req.Port)
			cancel()
			if !decision.Allow {
				respond(msg, hostapi.ConnectCheckReply{Allow: false, Reason: decision.Reason})
				return
			}
		}

		if guard != nil {
			if decision := guard.CheckOrigin(req.IP, req.Origin); !decision.Allow {
				if offenses != nil && decision.ZLine != nil {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					duration, err := offenses.Record(ctx, req.IP)
					cancel()
					if err != nil {
						log.Printf("[hook] offense record for %s: %v (using configured duration)", req.IP, err)
					} else {
						decision.ZLine.DurationSecs = int(duration.Seconds())
					}
				}
				respond(msg, hostapi.ConnectCheckReply{
					Allow:  false,
					Reason: "Invalid WebSocket origin",
					ZLine:  decision.ZLine,
				})
				return
			}
		}

		if hashed, ok := idents.HashedIdent(req.IP); ok {
			reply.Ident = hashed
		} else if fixed, ok := idents.ForNick(req.Nick); ok {
			reply.Ident = fixed
		}

		respond(msg, reply)
	}
}

// xlineHandler serves cmd.ZLINE and friends: the reason parameter gets an
// audit ID appended and the decorated command is announced to opers.
func xlineHandler(decorator *xlines.Decorator, notifier *audit.Notifier) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		var req hostapi.CommandRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("[hook] bad command request: %v", err)
			respond(msg, hostapi.CommandReply{})
			return
		}

		if !decorator.Handles(req.Command) || len(req.Params) == 0 {
			respond(msg, hostapi.CommandReply{Params: req.Params})
			return
		}

		params := decorator.Apply(req.Params)
		notifier.XLineUsed(req.Source, req.Command, params[0], params[1])
		respond(msg, hostapi.CommandReply{Params: params})
	}
}

// wikiHandler serves cmd.WIKI: the keyword resolves to an article URL sent
// back to the caller as a notice.
func wikiHandler(store *wiki.Store) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		var req hostapi.CommandRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("[hook] bad command request: %v", err)
			respond(msg, hostapi.CommandReply{})
			return
		}

		if len(req.Params) == 0 {
			respond(msg, hostapi.CommandReply{Notice: "Usage: WIKI <keyword>"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		url, ok := store.Lookup(ctx, req.Params[0])
		cancel()
		if !ok {
			respond(msg, hostapi.CommandReply{Notice: "No wiki article found for '" + req.Params[0] + "'"})
			return
		}
		respond(msg, hostapi.CommandReply{Notice: "Wiki: " + url})
	}
}

func respond(msg *nats.Msg, reply any) {
	data, err := json.Marshal(reply)
	if err != nil {
		log.Printf("[hook] marshal reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("[hook] respond on %s: %v", msg.Subject, err)
	}
}

// registerRPC exposes the bundle's JSON-RPC methods: a liveness ping, a
// dry-run filter check, and the active badword list.
func registerRPC(srv *rpc.Server, filter *censor.Filter) {
	srv.Register("server.ping", func(_ json.RawMessage) (any, *rpc.Error) {
		return "pong", nil
	})

	srv.Register("filter.check", func(params json.RawMessage) (any, *rpc.Error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &rpc.Error{Code: rpc.CodeInvalidParams, Message: "expected {\"text\": ...}"}
		}
		verdict := filter.Evaluate(hostapi.Sender{}, hostapi.Target{Kind: hostapi.TargetChannel, CensorMode: true}, p.Text)
		return map[string]any{
			"action": actionString(verdict.Action),
			"text":   verdict.Text,
			"reason": verdict.Reason,
			"phrase": verdict.Phrase,
		}, nil
	})

	srv.Register("badwords.list", func(_ json.RawMessage) (any, *rpc.Error) {
		rules := filter.Current().Rules.Rules()
		out := make([]map[string]string, 0, len(rules))
		for _, r := range rules {
			out = append(out, map[string]string{"text": r.Phrase, "replace": r.Replace})
		}
		return out, nil
	})
}

func actionString(a censor.Action) string {
	switch a {
	case censor.Rewrite:
		return hostapi.ActionRewrite
	case censor.Deny:
		return hostapi.ActionDeny
	default:
		return hostapi.ActionAllow
	}
}

func identRules(cfg *config.Config) []ident.Rule {
	rules := make([]ident.Rule, 0, len(cfg.Ident.Rules))
	for _, r := range cfg.Ident.Rules {
		rules = append(rules, ident.Rule{Nick: r.Nick, Ident: r.Ident})
	}
	return rules
}

func serveHTTP(name, addr string, h http.Handler) {
	log.Printf("[%s] listening on %s", name, addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Printf("[%s] server stopped: %v", name, err)
	}
}
