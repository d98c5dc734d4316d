package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// VenueConfig describes one trading venue.
type VenueConfig struct {
	Name      string   `yaml:"name"`
	WSURL     string   `yaml:"ws_url"`
	RestURL   string   `yaml:"rest_url"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	Paper     bool     `yaml:"paper"` // Paper client instead of a live venue
	Symbols   []string `yaml:"symbols"`
}

// Config holds the full application configuration. Secrets can be
// overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Venues []VenueConfig `yaml:"venues"`

	Capital struct {
		WashFraction        decimal.Decimal `yaml:"wash_fraction"`
		ArbFraction         decimal.Decimal `yaml:"arb_fraction"`
		ReserveFraction     decimal.Decimal `yaml:"reserve_fraction"`
		SafeModeDrawdownPct decimal.Decimal `yaml:"safe_mode_drawdown_pct"`
		MaxSingleFraction   decimal.Decimal `yaml:"max_single_fraction"`
		MaxTotalFraction    decimal.Decimal `yaml:"max_total_fraction"`
	} `yaml:"capital"`

	Risk struct {
		MaxRiskPct              decimal.Decimal `yaml:"max_risk_pct"`
		MaxDrawdownPct          decimal.Decimal `yaml:"max_drawdown_pct"`
		DailyLossLimit          decimal.Decimal `yaml:"daily_loss_limit"`
		ConsecutiveFailureLimit int             `yaml:"consecutive_failure_limit"`
		MaxSymbolExposurePct    decimal.Decimal `yaml:"max_symbol_exposure_pct"`
		FastMoveThresholdPct    decimal.Decimal `yaml:"fast_move_threshold_pct"`
		FastMoveWindowMS        int             `yaml:"fast_move_window_ms"`
		FreezeWindowMS          int             `yaml:"freeze_window_ms"`
	} `yaml:"risk"`

	Engine struct {
		LegTimeoutSec          int             `yaml:"leg_timeout_sec"`
		QueueSize              int             `yaml:"queue_size"`
		Workers                int             `yaml:"workers"`
		VolatilityThresholdPct decimal.Decimal `yaml:"volatility_threshold_pct"`
		LiquidityFactor        decimal.Decimal `yaml:"liquidity_factor"`
		ReducedSizeFactor      decimal.Decimal `yaml:"reduced_size_factor"`
	} `yaml:"engine"`

	Scanner struct {
		MinNetProfitPct decimal.Decimal `yaml:"min_net_profit_pct"`
		TakerFeePct     decimal.Decimal `yaml:"taker_fee_pct"`
		MaxSize         decimal.Decimal `yaml:"max_size"`
		EmitIntervalMS  int             `yaml:"emit_interval_ms"`
	} `yaml:"scanner"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies env-var
// overrides for secrets and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues are required for cross-venue spreads")
	}

	seen := make(map[string]bool)
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate venue name: %s", v.Name)
		}
		seen[v.Name] = true

		if !v.Paper {
			if v.WSURL == "" || (!strings.HasPrefix(v.WSURL, "ws://") && !strings.HasPrefix(v.WSURL, "wss://")) {
				return fmt.Errorf("invalid WS URL for venue %s: %s", v.Name, v.WSURL)
			}
		}
		if len(v.Symbols) == 0 {
			return fmt.Errorf("venue %s has no symbols", v.Name)
		}
	}

	if c.Engine.QueueSize < 0 || c.Engine.Workers < 0 {
		return fmt.Errorf("engine queue size and workers must be non-negative")
	}

	fractions := []decimal.Decimal{
		c.Capital.WashFraction, c.Capital.ArbFraction, c.Capital.ReserveFraction,
		c.Capital.MaxSingleFraction, c.Capital.MaxTotalFraction,
	}
	for _, f := range fractions {
		if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("capital fractions must be within [0, 1]")
		}
	}

	return nil
}

// overrideWithEnv applies environment overrides for venue credentials:
// ARB_<VENUE>_KEY and ARB_<VENUE>_SECRET.
func overrideWithEnv(cfg *Config) {
	for i := range cfg.Venues {
		prefix := "ARB_" + strings.ToUpper(cfg.Venues[i].Name)
		if key := os.Getenv(prefix + "_KEY"); key != "" {
			cfg.Venues[i].AccessKey = key
		}
		if secret := os.Getenv(prefix + "_SECRET"); secret != "" {
			cfg.Venues[i].SecretKey = secret
		}
	}
}
