// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LaunchConfig struct {
	Fee                 uint64        `mapstructure:"fee"`
	InitialSupply       uint64        `mapstructure:"initial_supply"`
	Decimals            uint8         `mapstructure:"decimals"`
	MaxTxBp             uint64        `mapstructure:"max_tx_bp"`
	GradThreshold       uint64        `mapstructure:"grad_threshold"`
	GradSlippagePercent uint64        `mapstructure:"grad_slippage_percent"`
	StartDelay          time.Duration `mapstructure:"start_delay"`
	PricingModel        string        `mapstructure:"pricing_model"`
	VirtualAssetReserve uint64        `mapstructure:"virtual_asset_reserve"`
	TokenTaxBp          uint64        `mapstructure:"token_tax_bp"`
	TokenTaxReceiver    string        `mapstructure:"token_tax_receiver"`
	Deadline            time.Duration `mapstructure:"deadline"`
}

type TaxConfig struct {
	Vault             string `mapstructure:"vault"`
	BuyBp             uint64 `mapstructure:"buy_bp"`
	SellBp            uint64 `mapstructure:"sell_bp"`
	AntiSniperStartBp uint64 `mapstructure:"anti_sniper_start_bp"`
	AntiSniperVault   string `mapstructure:"anti_sniper_vault"`
	MaxBp             uint64 `mapstructure:"max_bp"`
}

type ExchangeConfig struct {
	LPFeeBp uint64 `mapstructure:"lp_fee_bp"`
}

type StorageConfig struct {
	Path        string        `mapstructure:"path"` // пустой путь: история в памяти
	CacheSize   int           `mapstructure:"cache_size"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

type AssetConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

type Config struct {
	ProgramID string         `mapstructure:"program_id"`
	Launch    LaunchConfig   `mapstructure:"launch"`
	Tax       TaxConfig      `mapstructure:"tax"`
	Exchange  ExchangeConfig `mapstructure:"exchange"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Log       LogConfig      `mapstructure:"log"`
	Asset     AssetConfig    `mapstructure:"asset"`
}

const (
	DefaultFee                 = 100
	DefaultInitialSupply       = 1_000_000_000
	DefaultDecimals            = 6
	DefaultMaxTxBp             = 10_000
	DefaultGradThreshold       = 42_000
	DefaultGradSlippagePercent = 5
	DefaultStartDelay          = 30 * time.Minute
	DefaultPricingModel        = "virtual"
	DefaultDeadline            = 10 * time.Minute
	DefaultTaxMaxBp            = 9_900
	DefaultLPFeeBp             = 25
	DefaultCacheSize           = 256
	DefaultOpenTimeout         = 5 * time.Second

	envPrefix = "LAUNCHPAD"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"launch.fee":                   DefaultFee,
		"launch.initial_supply":        DefaultInitialSupply,
		"launch.decimals":              DefaultDecimals,
		"launch.max_tx_bp":             DefaultMaxTxBp,
		"launch.grad_threshold":        DefaultGradThreshold,
		"launch.grad_slippage_percent": DefaultGradSlippagePercent,
		"launch.start_delay":           DefaultStartDelay,
		"launch.pricing_model":         DefaultPricingModel,
		"launch.virtual_asset_reserve": 0,
		"launch.token_tax_bp":          0,
		"launch.token_tax_receiver":    "",
		"launch.deadline":              DefaultDeadline,
		"tax.vault":                    "",
		"tax.buy_bp":                   0,
		"tax.sell_bp":                  0,
		"tax.anti_sniper_start_bp":     0,
		"tax.anti_sniper_vault":        "",
		"tax.max_bp":                   DefaultTaxMaxBp,
		"exchange.lp_fee_bp":           DefaultLPFeeBp,
		"storage.path":                 "",
		"storage.cache_size":           DefaultCacheSize,
		"storage.open_timeout":         DefaultOpenTimeout,
		"log.debug":                    false,
		"log.file":                     "",
		"asset.name":                   "Virtual",
		"asset.symbol":                 "VIRTUAL",
		"asset.decimals":               DefaultDecimals,
		"program_id":                   "",
	}
}

// LoadConfig читает конфигурацию из path; пустой path означает только
// значения по умолчанию и переменные окружения LAUNCHPAD_*.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Launch.Fee == 0 {
		return errors.New("launch.fee must be positive")
	}
	if cfg.Launch.InitialSupply == 0 {
		return errors.New("launch.initial_supply must be positive")
	}
	if cfg.Launch.MaxTxBp > 10_000 {
		return errors.New("launch.max_tx_bp exceeds 10000")
	}
	if cfg.Launch.GradSlippagePercent > 100 {
		return errors.New("launch.grad_slippage_percent exceeds 100")
	}
	switch cfg.Launch.PricingModel {
	case "balance", "virtual":
	default:
		return fmt.Errorf("unknown launch.pricing_model %q", cfg.Launch.PricingModel)
	}
	if cfg.Tax.MaxBp >= 10_000 {
		return errors.New("tax.max_bp must be below 10000")
	}
	for name, bp := range map[string]uint64{
		"tax.buy_bp":               cfg.Tax.BuyBp,
		"tax.sell_bp":              cfg.Tax.SellBp,
		"tax.anti_sniper_start_bp": cfg.Tax.AntiSniperStartBp,
	} {
		if bp > cfg.Tax.MaxBp {
			return fmt.Errorf("%s exceeds tax.max_bp", name)
		}
	}
	if cfg.Exchange.LPFeeBp >= 10_000 {
		return errors.New("invalid exchange.lp_fee_bp")
	}
	if cfg.Storage.CacheSize < 0 {
		return errors.New("invalid storage.cache_size")
	}
	if cfg.Asset.Symbol == "" {
		return errors.New("asset.symbol is empty")
	}
	return nil
}
