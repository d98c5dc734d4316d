package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: arb
  version: 0.1.0
venues:
  - name: binance
    ws_url: wss://stream.example.com/ws
    access_key: file-key
    secret_key: file-secret
    symbols: [BTC]
  - name: kraken
    paper: true
    symbols: [BTC]
capital:
  wash_fraction: 0.7
  arb_fraction: 0.2
  reserve_fraction: 0.1
  safe_mode_drawdown_pct: 5
  max_single_fraction: 0.1
  max_total_fraction: 0.3
risk:
  max_risk_pct: 5
  max_drawdown_pct: 10
  daily_loss_limit: 1000
  consecutive_failure_limit: 3
  max_symbol_exposure_pct: 30
engine:
  leg_timeout_sec: 30
  queue_size: 1024
  workers: 4
scanner:
  min_net_profit_pct: 0.05
  taker_fee_pct: 0.1
  max_size: 1
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.Venues) != 2 {
		t.Fatalf("venues: got %d", len(cfg.Venues))
	}
	if cfg.Venues[0].Name != "binance" || !cfg.Venues[1].Paper {
		t.Errorf("venue parsing wrong: %+v", cfg.Venues)
	}
	if cfg.Capital.ArbFraction.String() != "0.2" {
		t.Errorf("arb fraction: got %s", cfg.Capital.ArbFraction)
	}
	if cfg.Engine.LegTimeoutSec != 30 {
		t.Errorf("leg timeout: got %d", cfg.Engine.LegTimeoutSec)
	}
}

func TestLoadConfig_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("ARB_BINANCE_KEY", "env-key")
	t.Setenv("ARB_BINANCE_SECRET", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Venues[0].AccessKey != "env-key" || cfg.Venues[0].SecretKey != "env-secret" {
		t.Errorf("env override not applied: %+v", cfg.Venues[0])
	}
	// Untouched venue keeps its file values.
	if cfg.Venues[1].AccessKey != "" {
		t.Errorf("unexpected override on kraken: %s", cfg.Venues[1].AccessKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"single venue", `
venues:
  - name: binance
    ws_url: wss://stream.example.com/ws
    symbols: [BTC]
`},
		{"duplicate venue names", `
venues:
  - name: binance
    ws_url: wss://a.example.com/ws
    symbols: [BTC]
  - name: binance
    ws_url: wss://b.example.com/ws
    symbols: [BTC]
`},
		{"bad ws url on live venue", `
venues:
  - name: binance
    ws_url: http://stream.example.com
    symbols: [BTC]
  - name: kraken
    paper: true
    symbols: [BTC]
`},
		{"no symbols", `
venues:
  - name: binance
    ws_url: wss://stream.example.com/ws
    symbols: []
  - name: kraken
    paper: true
    symbols: [BTC]
`},
		{"fraction out of range", `
venues:
  - name: binance
    paper: true
    symbols: [BTC]
  - name: kraken
    paper: true
    symbols: [BTC]
capital:
  arb_fraction: 1.5
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
