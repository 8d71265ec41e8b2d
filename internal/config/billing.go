package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the tunables of the billing pipeline that operators
// may change without a restart.
type BillingConfig struct {
	RentKeywords        []string `mapstructure:"rentKeywords"`
	ApproximatePageSize int      `mapstructure:"approximatePageSize"`
	DashboardPageSize   int      `mapstructure:"dashboardPageSize"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		RentKeywords:        []string{"nhà", "thuê", "phòng", "tiền nhà", "tiền thuê"},
		ApproximatePageSize: 100,
		DashboardPageSize:   20,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfig returns a holder that never reloads.
func NewStaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentbook")
	v.AddConfigPath(".")

	return newBillingConfigHolder(v, log)
}

// NewBillingConfigHolderFromFile loads billing settings from an explicit path.
func NewBillingConfigHolderFromFile(path string, log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newBillingConfigHolder(v, log)
}

func newBillingConfigHolder(v *viper.Viper, log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("billing.config")

	v.SetEnvPrefix("RENTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.rentKeywords", defaults.RentKeywords)
	v.SetDefault("billing.approximatePageSize", defaults.ApproximatePageSize)
	v.SetDefault("billing.dashboardPageSize", defaults.DashboardPageSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateBillingConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(normalizeBillingConfig(updated))
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

// RentKeywords satisfies the keyword source used by the invoice classifier.
func (h *BillingConfigHolder) RentKeywords() []string {
	return h.Get().RentKeywords
}

func validateBillingConfig(cfg BillingConfig) error {
	if len(cfg.RentKeywords) == 0 {
		return errors.New("billing.rentKeywords cannot be empty")
	}
	for _, kw := range cfg.RentKeywords {
		if strings.TrimSpace(kw) == "" {
			return errors.New("billing.rentKeywords cannot contain blank entries")
		}
	}
	if cfg.ApproximatePageSize < 0 || cfg.DashboardPageSize < 0 {
		return errors.New("billing page sizes cannot be negative")
	}
	return nil
}

func normalizeBillingConfig(cfg BillingConfig) BillingConfig {
	defaults := DefaultBillingConfig()
	if len(cfg.RentKeywords) == 0 {
		cfg.RentKeywords = defaults.RentKeywords
	}
	if cfg.ApproximatePageSize <= 0 {
		cfg.ApproximatePageSize = defaults.ApproximatePageSize
	}
	if cfg.DashboardPageSize <= 0 {
		cfg.DashboardPageSize = defaults.DashboardPageSize
	}
	return cfg
}
