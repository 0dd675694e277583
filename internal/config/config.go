// Package config loads and validates the bundle's TOML configuration.
// The whole file is parsed and validated as a unit before any module
// activates; a bad pattern, an empty badword, or a missing required field
// refuses activation rather than degrading silently.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Badword is one banned phrase. An empty Replace blocks the message
// outright instead of rewriting it.
type Badword struct {
	Text    string `koanf:"text"`
	Replace string `koanf:"replace"`
}

// CensorCfg configures the content-filtering engine.
type CensorCfg struct {
	WhitelistRegex string `koanf:"whitelist_regex"`
	EmojiRegex     string `koanf:"emoji_regex"`
	EmoticonRegex  string `koanf:"emoticon_regex"`
	PatternCache   string `koanf:"pattern_cache"` // optional bbolt file; empty disables caching
}

// CaptchaCfg configures the connect-time CAPTCHA gate.
type CaptchaCfg struct {
	Enabled     bool          `koanf:"enabled"`
	Conninfo    string        `koanf:"conninfo"` // PostgreSQL DSN
	Ports       []int         `koanf:"ports"`    // only connections on these ports are checked
	URL         string        `koanf:"url"`      // where users solve the CAPTCHA
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// WSGuardCfg configures fake-WebSocket botnet detection.
type WSGuardCfg struct {
	Enabled     bool     `koanf:"enabled"`
	Listen      string   `koanf:"listen"`
	Origins     []string `koanf:"origins"`
	ZLineSecs   int      `koanf:"zline_secs"`
	ZLineReason string   `koanf:"zline_reason"`
}

// RPCCfg configures the JSON-RPC 2.0 endpoint.
type RPCCfg struct {
	Enabled  bool   `koanf:"enabled"`
	Listen   string `koanf:"listen"`
	User     string `koanf:"apiuser"`
	Password string `koanf:"password"`
}

// XLinesCfg lists the oper commands that get a random audit ID appended.
type XLinesCfg struct {
	Commands []string `koanf:"commands"`
}

// IdentRule rewrites the ident of users using a given nick.
type IdentRule struct {
	Nick  string `koanf:"nick"`
	Ident string `koanf:"ident"`
}

// IdentCfg configures ident manipulation. HashSecret enables the hashed
// ident on registration; Rules apply on nick change.
type IdentCfg struct {
	HashSecret string      `koanf:"hash_secret"`
	Rules      []IdentRule `koanf:"rules"`
}

// WikiCfg configures the WIKI command.
type WikiCfg struct {
	Enabled bool              `koanf:"enabled"`
	BaseURL string            `koanf:"base_url"`
	Slugs   map[string]string `koanf:"slugs"`
}

// NATSCfg holds the host transport settings.
type NATSCfg struct {
	URL  string `koanf:"url"`
	Name string `koanf:"name"`
}

// RedisCfg holds the shared Redis settings.
type RedisCfg struct {
	Addr string `koanf:"addr"`
}

// MetricsCfg holds the Prometheus endpoint address.
type MetricsCfg struct {
	Listen string `koanf:"listen"`
}

// Config is the whole validated configuration.
type Config struct {
	Censor   CensorCfg  `koanf:"censor"`
	Badwords []Badword  `koanf:"badword"`
	Captcha  CaptchaCfg `koanf:"captcha"`
	WSGuard  WSGuardCfg `koanf:"wsguard"`
	RPC      RPCCfg     `koanf:"jsonrpc"`
	XLines   XLinesCfg  `koanf:"xlines"`
	Ident    IdentCfg   `koanf:"ident"`
	Wiki     WikiCfg    `koanf:"wiki"`
	NATS     NATSCfg    `koanf:"nats"`
	Redis    RedisCfg   `koanf:"redis"`
	Metrics  MetricsCfg `koanf:"metrics"`
}

// Default returns the configuration the bundle ships with.
func Default() Config {
	return Config{
		Censor: CensorCfg{
			WhitelistRegex: `^[\p{Latin}\p{Common} ]+$`,
			EmojiRegex:     `^[\p{Emoji}]+$`,
			EmoticonRegex:  `[:;][-~]?[)DdpP]|O[:;]3`,
		},
		Captcha: CaptchaCfg{
			CacheTTL:    10 * time.Minute,
			MaxAttempts: 5,
		},
		WSGuard: WSGuardCfg{
			Listen:      ":8083",
			Origins:     []string{"kiwiirc.com"},
			ZLineSecs:   3600,
			ZLineReason: "Botnet detected using WebSockets!",
		},
		RPC: RPCCfg{
			Listen:   ":8080",
			User:     "apiuser",
			Password: "password",
		},
		XLines: XLinesCfg{
			Commands: []string{"ZLINE", "GLINE", "KILL"},
		},
		NATS: NATSCfg{
			URL:  "nats://localhost:4222",
			Name: "inspircd-mods",
		},
		Redis: RedisCfg{
			Addr: "localhost:6379",
		},
		Metrics: MetricsCfg{
			Listen: ":9100",
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result. It returns an error naming the offending key on any invalid or
// missing required value; the caller aborts activation in that case.
func Load(path string) (*Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with command-line flags layered over the file: a flag
// whose name matches a config key (nats.url, redis.addr, ...) overrides
// the file value when set on the command line.
func LoadWith(path string, flags *pflag.FlagSet) (*Config, error) {
	ko := koanf.New(".")
	if err := ko.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if flags != nil {
		if err := ko.Load(posflag.Provider(flags, ".", ko), nil); err != nil {
			return nil, fmt.Errorf("config: apply flags: %w", err)
		}
	}

	cfg := Default()
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every module section. Pattern syntax is not checked
// here; compilation happens in the censor engine and its errors are also
// load-time fatal.
func (c *Config) Validate() error {
	if c.Censor.WhitelistRegex == "" {
		return fmt.Errorf("config: censor.whitelist_regex is empty")
	}
	if c.Censor.EmojiRegex == "" {
		return fmt.Errorf("config: censor.emoji_regex is empty")
	}
	if c.Censor.EmoticonRegex == "" {
		return fmt.Errorf("config: censor.emoticon_regex is empty")
	}

	for i, bw := range c.Badwords {
		if bw.Text == "" {
			return fmt.Errorf("config: badword[%d].text is empty", i)
		}
	}

	if c.Captcha.Enabled {
		if c.Captcha.Conninfo == "" {
			return fmt.Errorf("config: captcha.conninfo is required")
		}
		if len(c.Captcha.Ports) == 0 {
			return fmt.Errorf("config: captcha.ports is required")
		}
		if c.Captcha.URL == "" {
			return fmt.Errorf("config: captcha.url is required")
		}
		if c.Captcha.MaxAttempts <= 0 {
			return fmt.Errorf("config: captcha.max_attempts must be positive")
		}
		if c.Captcha.CacheTTL <= 0 {
			return fmt.Errorf("config: captcha.cache_ttl must be positive")
		}
	}

	if c.WSGuard.Enabled && len(c.WSGuard.Origins) == 0 {
		return fmt.Errorf("config: wsguard.origins is required")
	}

	if c.RPC.Enabled {
		if c.RPC.User == "" || c.RPC.Password == "" {
			return fmt.Errorf("config: jsonrpc.apiuser and jsonrpc.password are required")
		}
	}

	if c.Wiki.Enabled && c.Wiki.BaseURL == "" {
		return fmt.Errorf("config: wiki.base_url is required")
	}

	return nil
}
