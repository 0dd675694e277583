package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
[censor]
whitelist_regex = '^[A-Za-z ]+$'

[[badword]]
text = "foo"
replace = "bar"

[[badword]]
text = "spam phrase"
replace = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Censor.WhitelistRegex != `^[A-Za-z ]+$` {
		t.Errorf("whitelist_regex = %q, want override", cfg.Censor.WhitelistRegex)
	}
	if cfg.Censor.EmojiRegex != `^[\p{Emoji}]+$` {
		t.Errorf("emoji_regex = %q, want shipped default", cfg.Censor.EmojiRegex)
	}
	if len(cfg.Badwords) != 2 {
		t.Fatalf("badword count = %d, want 2", len(cfg.Badwords))
	}
	if cfg.Badwords[1].Replace != "" {
		t.Errorf("badword[1].replace = %q, want empty (blocking rule)", cfg.Badwords[1].Replace)
	}
	if got := cfg.XLines.Commands; len(got) != 3 {
		t.Errorf("xlines.commands = %v, want default ZLINE/GLINE/KILL", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load succeeded on a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty whitelist regex", func(c *Config) { c.Censor.WhitelistRegex = "" }, true},
		{"empty emoji regex", func(c *Config) { c.Censor.EmojiRegex = "" }, true},
		{"empty emoticon regex", func(c *Config) { c.Censor.EmoticonRegex = "" }, true},
		{"empty badword text", func(c *Config) { c.Badwords = []Badword{{Text: ""}} }, true},
		{"captcha enabled without conninfo", func(c *Config) { c.Captcha.Enabled = true }, true},
		{"captcha fully configured", func(c *Config) {
			c.Captcha.Enabled = true
			c.Captcha.Conninfo = "dbname=ircd"
			c.Captcha.Ports = []int{6667}
			c.Captcha.URL = "https://example.net/verify/"
		}, false},
		{"wsguard without origins", func(c *Config) {
			c.WSGuard.Enabled = true
			c.WSGuard.Origins = nil
		}, true},
		{"rpc without password", func(c *Config) {
			c.RPC.Enabled = true
			c.RPC.Password = ""
		}, true},
		{"wiki without base url", func(c *Config) { c.Wiki.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
