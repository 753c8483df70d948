package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testMarketplace = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	cfg.Chain.MarketplaceAddress = testMarketplace
	return cfg
}

func TestDefaultsNeedOnlyWalletAndMarketplace(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Chain.MarketplaceAddress = "not-an-address"
	cfg.PrizePool.Source = "http"
	cfg.Session.LockTTL = duration{time.Minute}
	cfg.Notify.Kinds = []string{"warning"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		"marketplace_address",
		"api_url is required",
		"lock_ttl must not be shorter",
		`unknown kind "warning"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateWallet(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "full mode needs a key",
			mutate:  func(c *Config) { c.Wallet.PrivateKey = "" },
			wantErr: "either private_key or encrypted_key_path",
		},
		{
			name: "server mode runs without a key",
			mutate: func(c *Config) {
				c.Mode = "server"
				c.Wallet.PrivateKey = ""
			},
		},
		{
			name: "encrypted key needs password",
			mutate: func(c *Config) {
				c.Wallet.PrivateKey = ""
				c.Wallet.EncryptedKeyPath = "/keys/seller.enc"
			},
			wantErr: "key_password is required",
		},
		{
			name: "migrate mode skips chain checks",
			mutate: func(c *Config) {
				c.Mode = "migrate"
				c.Chain.MarketplaceAddress = ""
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hotpot.toml")
	body := `
mode = "server"

[chain]
rpc_url = "https://rpc.example.org"
chain_id = 8453
marketplace_address = "` + testMarketplace + `"
receipt_poll_interval = "500ms"

[session]
ttl = "5m"

[server]
port = 9000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("HOTPOT_SERVER_PORT", "9100")
	t.Setenv("HOTPOT_NOTIFY_KINDS", "error, info ,")
	t.Setenv("HOTPOT_CHAIN_ID", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "server" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.Chain.ChainID != 8453 {
		t.Errorf("ChainID = %d, unparsable env must not override", cfg.Chain.ChainID)
	}
	if cfg.Chain.ReceiptPollInterval.Duration != 500*time.Millisecond {
		t.Errorf("ReceiptPollInterval = %v", cfg.Chain.ReceiptPollInterval.Duration)
	}
	if cfg.Session.TTL.Duration != 5*time.Minute {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL.Duration)
	}
	if cfg.Session.LockTTL.Duration != 15*time.Minute {
		t.Errorf("Session.LockTTL = %v, want default", cfg.Session.LockTTL.Duration)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Notify.Kinds, ","); got != "error,info" {
		t.Errorf("Notify.Kinds = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("mode = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pg-secret"
	cfg.Notify.WebhookSecret = "hook-secret"
	cfg.Server.APIKey = "api-key"

	out := RedactedConfig(&cfg)
	for name, got := range map[string]string{
		"wallet.private_key":    out.Wallet.PrivateKey,
		"postgres.password":     out.Postgres.Password,
		"notify.webhook_secret": out.Notify.WebhookSecret,
		"server.api_key":        out.Server.APIKey,
	} {
		if got != redacted {
			t.Errorf("%s = %q, want redacted", name, got)
		}
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret should stay empty, got %q", out.Redis.Password)
	}
	if cfg.Postgres.Password != "pg-secret" {
		t.Error("original config was modified")
	}

	out.Notify.Kinds[0] = "changed"
	if cfg.Notify.Kinds[0] == "changed" {
		t.Error("slices are shared with the original")
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		hidePath bool
		keep     string
		secret   string
	}{
		{"dsn password", "postgres://hotpot:pg-secret@db:5432/hotpot", false, "db:5432", "pg-secret"},
		{"rpc path key", "https://mainnet.infura.io/v3/abcdef123456", true, "mainnet.infura.io", "abcdef123456"},
		{"rpc query key", "https://rpc.example/?apikey=abcdef123456", true, "rpc.example", "abcdef123456"},
		{"discord webhook", "https://discord.com/api/webhooks/1/tok-en", true, "discord.com", "tok-en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactURL(tt.raw, tt.hidePath)
			if strings.Contains(got, tt.secret) || !strings.Contains(got, tt.keep) {
				t.Fatalf("redactURL(%q) = %q", tt.raw, got)
			}
		})
	}
	if got := redactURL("host=db password=x", false); got != redacted {
		t.Fatalf("key/value DSN = %q, want fully redacted", got)
	}
	if got := redactURL("", true); got != "" {
		t.Fatalf("empty = %q", got)
	}
}
