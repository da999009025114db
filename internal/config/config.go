package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// Config is the full engine configuration. Values load in three layers:
// Default() -> YAML file -> environment overrides.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Gates     GatesConfig     `yaml:"gates"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Sizing    SizingConfig    `yaml:"sizing"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Mode      ModeConfig      `yaml:"mode"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // feed + admin + metrics listen address
}

type EngineConfig struct {
	Workers       int           `yaml:"workers"`        // admission worker pool size
	IntakeBuffer  int           `yaml:"intake_buffer"`  // bounded candidate queue length
	DedupTTL      time.Duration `yaml:"dedup_ttl"`      // rolling dedup window per address
	MinScore      float64       `yaml:"min_score"`      // graduation score floor for sizing
	NotifyRejects bool          `yaml:"notify_rejects"` // notify on gate/sizing rejections
}

type GatesConfig struct {
	LockerRepMin  float64 `yaml:"locker_rep_min"`   // minimum LP locker reputation 0..100
	SniperPctMax  float64 `yaml:"sniper_pct_max"`   // maximum sniper-held supply %
	Top10PctMax   float64 `yaml:"top10_pct_max"`    // maximum top-10 holder supply %
	LPLockMinDays float64 `yaml:"lp_lock_min_days"` // minimum LP lock duration
}

// Bound is a linear normalization range: values at or below Lo map to 0,
// at or above Hi map to 1.
type Bound struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

type ScoringConfig struct {
	ModelID string        `yaml:"model_id"`
	Weights WeightsConfig `yaml:"weights"`
	Bounds  BoundsConfig  `yaml:"bounds"`
}

type WeightsConfig struct {
	Volume     float64 `yaml:"volume"`
	Liquidity  float64 `yaml:"liquidity"`
	Holders    float64 `yaml:"holder_quality"`
	Momentum   float64 `yaml:"momentum"`
	SmartMoney float64 `yaml:"smart_money"`
}

// Sum returns the total factor weight.
func (w WeightsConfig) Sum() float64 {
	return w.Volume + w.Liquidity + w.Holders + w.Momentum + w.SmartMoney
}

type BoundsConfig struct {
	Volume     Bound `yaml:"volume"`
	Liquidity  Bound `yaml:"liquidity"`
	Holders    Bound `yaml:"holder_quality"`
	Momentum   Bound `yaml:"momentum"`
	SmartMoney Bound `yaml:"smart_money"`
}

type SizingConfig struct {
	KellyFraction  float64 `yaml:"kelly_fraction"`   // damper applied to raw Kelly, (0,1]
	PerTradeCap    float64 `yaml:"per_trade_cap"`    // max fraction of equity per position
	MinNotionalUSD float64 `yaml:"min_notional_usd"` // positions below this are skipped
	PayoffWinner   float64 `yaml:"payoff_winner"`    // expected return multiple for WINNER
	PayoffMega     float64 `yaml:"payoff_mega"`      // expected return multiple for MEGA
	ConfigRev      string  `yaml:"config_rev"`       // revision tag logged on every decision
}

type RiskConfig struct {
	EquityUSD       float64 `yaml:"equity_usd"`
	ExposureCapFrac float64 `yaml:"exposure_cap_frac"` // global open exposure as fraction of equity
	MaxConcurrent   int     `yaml:"max_concurrent"`    // open + reserved position slots
	DailyLossCapPct float64 `yaml:"daily_loss_cap_pct"`
}

type ExecutionConfig struct {
	SlippageBpsDefault  float64       `yaml:"slippage_bps_default"` // paper fill degradation
	VenueEndpoint       string        `yaml:"venue_endpoint"`       // swap route service URL
	RouteTimeout        time.Duration `yaml:"route_timeout"`        // per-attempt deadline
	PriorityFeeLamports int64         `yaml:"priority_fee_lamports"`
}

type ModeConfig struct {
	Initial       string        `yaml:"initial"`        // PAPER | LIVE | ALERTS_ONLY
	KillDuration  time.Duration `yaml:"kill_duration"`  // ALERTS_ONLY window after kill
	GuardInterval time.Duration `yaml:"guard_interval"` // loss-cap / day-rollover tick
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`   // empty = in-memory stores
	ClickHouseDSN string `yaml:"clickhouse_dsn"` // empty = journal stays on the primary store
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		Engine: EngineConfig{
			Workers:       4,
			IntakeBuffer:  256,
			DedupTTL:      30 * time.Minute,
			MinScore:      60,
			NotifyRejects: false,
		},
		Gates: GatesConfig{
			LockerRepMin:  70,
			SniperPctMax:  15,
			Top10PctMax:   35,
			LPLockMinDays: 30,
		},
		Scoring: ScoringConfig{
			ModelID: "weighted-v1",
			Weights: WeightsConfig{
				Volume:     0.25,
				Liquidity:  0.25,
				Holders:    0.20,
				Momentum:   0.15,
				SmartMoney: 0.15,
			},
			Bounds: BoundsConfig{
				Volume:     Bound{Lo: 5000, Hi: 250000},
				Liquidity:  Bound{Lo: 10000, Hi: 200000},
				Holders:    Bound{Lo: 0, Hi: 1},
				Momentum:   Bound{Lo: -0.5, Hi: 1.0},
				SmartMoney: Bound{Lo: 0, Hi: 20},
			},
		},
		Sizing: SizingConfig{
			KellyFraction:  0.20,
			PerTradeCap:    0.005,
			MinNotionalUSD: 10,
			PayoffWinner:   1.0,
			PayoffMega:     8.0,
			ConfigRev:      "sizing-v1",
		},
		Risk: RiskConfig{
			EquityUSD:       100000,
			ExposureCapFrac: 0.025,
			MaxConcurrent:   5,
			DailyLossCapPct: -0.02,
		},
		Execution: ExecutionConfig{
			SlippageBpsDefault:  100,
			RouteTimeout:        8 * time.Second,
			PriorityFeeLamports: 200000,
		},
		Mode: ModeConfig{
			Initial:       "PAPER",
			KillDuration:  2 * time.Hour,
			GuardInterval: time.Second,
		},
		Telegram: TelegramConfig{},
		Storage:  StorageConfig{},
	}
}

// LoadFile reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides deployment-varying values from the environment.
// DSNs keep the conventional names; engine settings use the GRAD_ prefix.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_URL"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("GRAD_LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAD_MODE")); v != "" {
		c.Mode.Initial = strings.ToUpper(v)
	}
	if v := os.Getenv("GRAD_EQUITY_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Risk.EquityUSD = f
		}
	}
	if v := os.Getenv("GRAD_VENUE_ENDPOINT"); v != "" {
		c.Execution.VenueEndpoint = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
		c.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

// Validate checks cross-field constraints. The engine refuses to start
// on any violation.
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be >= 1, got %d", c.Engine.Workers)
	}
	if c.Engine.IntakeBuffer < 1 {
		return fmt.Errorf("engine.intake_buffer must be >= 1, got %d", c.Engine.IntakeBuffer)
	}
	if c.Engine.DedupTTL <= 0 {
		return fmt.Errorf("engine.dedup_ttl must be positive, got %s", c.Engine.DedupTTL)
	}
	if c.Engine.MinScore < 0 || c.Engine.MinScore > 100 {
		return fmt.Errorf("engine.min_score must be in [0,100], got %g", c.Engine.MinScore)
	}
	if sum := c.Scoring.Weights.Sum(); math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("scoring.weights must sum to 1, got %g", sum)
	}
	for _, b := range []struct {
		name  string
		bound Bound
	}{
		{"volume", c.Scoring.Bounds.Volume},
		{"liquidity", c.Scoring.Bounds.Liquidity},
		{"holder_quality", c.Scoring.Bounds.Holders},
		{"momentum", c.Scoring.Bounds.Momentum},
		{"smart_money", c.Scoring.Bounds.SmartMoney},
	} {
		if b.bound.Lo >= b.bound.Hi {
			return fmt.Errorf("scoring.bounds.%s: lo %g must be below hi %g", b.name, b.bound.Lo, b.bound.Hi)
		}
	}
	if c.Sizing.KellyFraction <= 0 || c.Sizing.KellyFraction > 1 {
		return fmt.Errorf("sizing.kelly_fraction must be in (0,1], got %g", c.Sizing.KellyFraction)
	}
	if c.Sizing.PerTradeCap <= 0 || c.Sizing.PerTradeCap >= 1 {
		return fmt.Errorf("sizing.per_trade_cap must be in (0,1), got %g", c.Sizing.PerTradeCap)
	}
	if c.Sizing.PayoffWinner <= 0 || c.Sizing.PayoffMega <= 0 {
		return fmt.Errorf("sizing payoffs must be positive, got winner=%g mega=%g",
			c.Sizing.PayoffWinner, c.Sizing.PayoffMega)
	}
	if c.Sizing.ConfigRev == "" {
		return fmt.Errorf("sizing.config_rev must not be empty")
	}
	if c.Risk.EquityUSD <= 0 {
		return fmt.Errorf("risk.equity_usd must be positive, got %g", c.Risk.EquityUSD)
	}
	if c.Risk.ExposureCapFrac <= 0 || c.Risk.ExposureCapFrac > 1 {
		return fmt.Errorf("risk.exposure_cap_frac must be in (0,1], got %g", c.Risk.ExposureCapFrac)
	}
	if c.Risk.MaxConcurrent < 1 {
		return fmt.Errorf("risk.max_concurrent must be >= 1, got %d", c.Risk.MaxConcurrent)
	}
	if c.Risk.DailyLossCapPct >= 0 || c.Risk.DailyLossCapPct < -1 {
		return fmt.Errorf("risk.daily_loss_cap_pct must be in [-1,0), got %g", c.Risk.DailyLossCapPct)
	}
	if c.Execution.SlippageBpsDefault < 0 {
		return fmt.Errorf("execution.slippage_bps_default must be >= 0, got %g", c.Execution.SlippageBpsDefault)
	}
	if c.Execution.RouteTimeout < time.Second {
		return fmt.Errorf("execution.route_timeout must be at least 1s, got %s", c.Execution.RouteTimeout)
	}
	if _, err := domain.ParseMode(c.Mode.Initial); err != nil {
		return fmt.Errorf("mode.initial: %w", err)
	}
	if c.Mode.KillDuration <= 0 {
		return fmt.Errorf("mode.kill_duration must be positive, got %s", c.Mode.KillDuration)
	}
	if c.Mode.GuardInterval <= 0 {
		return fmt.Errorf("mode.guard_interval must be positive, got %s", c.Mode.GuardInterval)
	}
	return nil
}
