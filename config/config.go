package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/lendpool/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de lendpool.
type Config struct {
	Pool     PoolConfig     `yaml:"pool"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Simulate SimulateConfig `yaml:"simulate"`
	Log      LogConfig      `yaml:"log"`
}

// PoolConfig define el pool a crear si el store está vacío. Los importes van como
// strings ("5000", "0.4") para no pasar por float.
type PoolConfig struct {
	ID             string `yaml:"id"` // pool a abrir; vacío = el último creado
	InitialDeposit string `yaml:"initial_deposit"`
	StartAmount    string `yaml:"start_amount"`
	Fee            string `yaml:"fee"`
	Reward         string `yaml:"reward"`

	// Overrides opcionales de los parámetros por defecto.
	BonusFeeL1       string `yaml:"bonus_fee_l1"`
	BonusFeeL2       string `yaml:"bonus_fee_l2"`
	ExtraRewardL1    string `yaml:"extra_reward_l1"`
	ExtraRewardL2    string `yaml:"extra_reward_l2"`
	MinRatioLend     string `yaml:"min_ratio_lend"`
	MaxRatioLend     string `yaml:"max_ratio_lend"`
	MinRatioBorrow   string `yaml:"min_ratio_borrow"`
	MaxRatioBorrow   string `yaml:"max_ratio_borrow"`
	LoanPoolLowLimit string `yaml:"loan_pool_low_limit"`
	MainPoolLowLimit string `yaml:"main_pool_low_limit"`
	TierLow          int    `yaml:"tier_low"`
	TierHigh         int    `yaml:"tier_high"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// ServerConfig controla la API HTTP.
type ServerConfig struct {
	Addr                  string  `yaml:"addr"`
	RatePerSec            float64 `yaml:"rate_per_sec"` // por cliente
	Burst                 int     `yaml:"burst"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
}

// SimulateConfig controla `lendpool -simulate`.
type SimulateConfig struct {
	Lenders    int     `yaml:"lenders"`
	Borrowers  int     `yaml:"borrowers"`
	Steps      int     `yaml:"steps"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Seed       uint64  `yaml:"seed"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// RequestTimeout devuelve el timeout por petición como time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// Amounts parsea los importes de creación.
func (p PoolConfig) Amounts() (deposit, start, fee, reward decimal.Decimal, err error) {
	vals := make([]decimal.Decimal, 4)
	for i, f := range []struct{ name, raw string }{
		{"initial_deposit", p.InitialDeposit},
		{"start_amount", p.StartAmount},
		{"fee", p.Fee},
		{"reward", p.Reward},
	} {
		vals[i], err = decimal.NewFromString(f.raw)
		if err != nil {
			return deposit, start, fee, reward, fmt.Errorf("config: pool.%s %q: %w", f.name, f.raw, err)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// Overrides parsea los overrides presentes y devuelve la función que los aplica
// sobre los parámetros por defecto. Los campos vacíos no se tocan.
func (p PoolConfig) Overrides() (func(*domain.PoolParams), error) {
	type override struct {
		name string
		raw  string
		dst  func(*domain.PoolParams) *decimal.Decimal
	}
	fields := []override{
		{"bonus_fee_l1", p.BonusFeeL1, func(x *domain.PoolParams) *decimal.Decimal { return &x.BonusFeeL1 }},
		{"bonus_fee_l2", p.BonusFeeL2, func(x *domain.PoolParams) *decimal.Decimal { return &x.BonusFeeL2 }},
		{"extra_reward_l1", p.ExtraRewardL1, func(x *domain.PoolParams) *decimal.Decimal { return &x.ExtraRewardL1 }},
		{"extra_reward_l2", p.ExtraRewardL2, func(x *domain.PoolParams) *decimal.Decimal { return &x.ExtraRewardL2 }},
		{"min_ratio_lend", p.MinRatioLend, func(x *domain.PoolParams) *decimal.Decimal { return &x.MinRatioLend }},
		{"max_ratio_lend", p.MaxRatioLend, func(x *domain.PoolParams) *decimal.Decimal { return &x.MaxRatioLend }},
		{"min_ratio_borrow", p.MinRatioBorrow, func(x *domain.PoolParams) *decimal.Decimal { return &x.MinRatioBorrow }},
		{"max_ratio_borrow", p.MaxRatioBorrow, func(x *domain.PoolParams) *decimal.Decimal { return &x.MaxRatioBorrow }},
		{"loan_pool_low_limit", p.LoanPoolLowLimit, func(x *domain.PoolParams) *decimal.Decimal { return &x.LoanPoolLowLimit }},
		{"main_pool_low_limit", p.MainPoolLowLimit, func(x *domain.PoolParams) *decimal.Decimal { return &x.MainPoolLowLimit }},
	}

	type parsed struct {
		dst func(*domain.PoolParams) *decimal.Decimal
		val decimal.Decimal
	}
	var set []parsed
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("config: pool.%s %q: %w", f.name, f.raw, err)
		}
		set = append(set, parsed{dst: f.dst, val: v})
	}

	tierLow, tierHigh := p.TierLow, p.TierHigh
	return func(prm *domain.PoolParams) {
		for _, s := range set {
			*s.dst(prm) = s.val
		}
		if tierLow > 0 {
			prm.TierLow = tierLow
		}
		if tierHigh > 0 {
			prm.TierHigh = tierHigh
		}
	}, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LENDPOOL_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LENDPOOL_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LENDPOOL_POOL_ID"); v != "" {
		cfg.Pool.ID = v
	}
	if v := os.Getenv("LENDPOOL_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RatePerSec = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los defaults del pool son los del escenario de referencia: 5000 / 1000 / 7 / 5.
func setDefaults(cfg *Config) {
	if cfg.Pool.InitialDeposit == "" {
		cfg.Pool.InitialDeposit = "5000"
	}
	if cfg.Pool.StartAmount == "" {
		cfg.Pool.StartAmount = "1000"
	}
	if cfg.Pool.Fee == "" {
		cfg.Pool.Fee = "7"
	}
	if cfg.Pool.Reward == "" {
		cfg.Pool.Reward = "5"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "lendpool.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RatePerSec <= 0 {
		cfg.Server.RatePerSec = 5
	}
	if cfg.Server.Burst <= 0 {
		cfg.Server.Burst = 10
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 10
	}
	if cfg.Simulate.Lenders <= 0 {
		cfg.Simulate.Lenders = 4
	}
	if cfg.Simulate.Borrowers <= 0 {
		cfg.Simulate.Borrowers = 4
	}
	if cfg.Simulate.Steps <= 0 {
		cfg.Simulate.Steps = 30
	}
	if cfg.Simulate.RatePerSec <= 0 {
		cfg.Simulate.RatePerSec = 200
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
