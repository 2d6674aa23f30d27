package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type DB struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

type Mail struct {
	Driver        string // smtp | mailjet | "" (disabled)
	From          string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	MailjetKey    string
	MailjetSecret string
	BaseURL       string
}

type Reconcile struct {
	Schedule    string
	InFlightAge time.Duration
	RetryMinAge time.Duration
	RetryMaxAge time.Duration
	BatchSize   int
}

// Config is built once in main and handed to every component that needs it.
type Config struct {
	Port        string
	CORSOrigins []string

	WalletAddress  string
	USDTContract   string
	TokenDecimals  int32
	MarkupPercent  decimal.Decimal
	MinimumAmount  decimal.Decimal
	IndexerBaseURL string
	IndexerAPIKey  string
	IndexerTimeout time.Duration

	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	DB        DB
	Mail      Mail
	Reconcile Reconcile
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("topup.markup_percent", "5")
	v.SetDefault("topup.minimum_amount", "10")
	v.SetDefault("tron.indexer_base_url", "https://api.trongrid.io")
	v.SetDefault("tron.token_decimals", 6)
	v.SetDefault("tron.timeout", 15*time.Second)
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("auth.jwt_ttl", 7*24*time.Hour)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("mail.smtp_port", 465)
	v.SetDefault("reconcile.schedule", "@every 5m")
	v.SetDefault("reconcile.in_flight_age", 2*time.Minute)
	v.SetDefault("reconcile.retry_min_age", 2*time.Minute)
	v.SetDefault("reconcile.retry_max_age", 72*time.Hour)
	v.SetDefault("reconcile.batch_size", 50)
}

// Load reads configs/<name>.yaml (if present) and VCARD_* environment overrides.
func Load(path, name string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetEnvPrefix("vcard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	markup, err := decimal.NewFromString(v.GetString("topup.markup_percent"))
	if err != nil {
		return nil, fmt.Errorf("topup.markup_percent: %w", err)
	}
	minimum, err := decimal.NewFromString(v.GetString("topup.minimum_amount"))
	if err != nil {
		return nil, fmt.Errorf("topup.minimum_amount: %w", err)
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		CORSOrigins: v.GetStringSlice("cors.origins"),

		WalletAddress:  strings.TrimSpace(v.GetString("tron.wallet_address")),
		USDTContract:   strings.TrimSpace(v.GetString("tron.usdt_contract")),
		TokenDecimals:  v.GetInt32("tron.token_decimals"),
		MarkupPercent:  markup,
		MinimumAmount:  minimum,
		IndexerBaseURL: strings.TrimRight(v.GetString("tron.indexer_base_url"), "/"),
		IndexerAPIKey:  v.GetString("tron.api_key"),
		IndexerTimeout: v.GetDuration("tron.timeout"),

		ProviderBaseURL: strings.TrimRight(v.GetString("provider.base_url"), "/"),
		ProviderAPIKey:  v.GetString("provider.api_key"),
		ProviderTimeout: v.GetDuration("provider.timeout"),

		JWTSecret: v.GetString("auth.jwt_secret"),
		JWTTTL:    v.GetDuration("auth.jwt_ttl"),

		DB: DB{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Username: v.GetString("db.username"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.dbname"),
			SSLMode:  v.GetString("db.sslmode"),
			Migrate:  v.GetBool("db.migrate"),
		},
		Mail: Mail{
			Driver:        v.GetString("mail.driver"),
			From:          v.GetString("mail.from"),
			SMTPHost:      v.GetString("mail.smtp_host"),
			SMTPPort:      v.GetInt("mail.smtp_port"),
			SMTPUser:      v.GetString("mail.smtp_user"),
			SMTPPassword:  v.GetString("mail.smtp_password"),
			MailjetKey:    v.GetString("mail.mailjet_key"),
			MailjetSecret: v.GetString("mail.mailjet_secret"),
			BaseURL:       v.GetString("mail.base_url"),
		},
		Reconcile: Reconcile{
			Schedule:    v.GetString("reconcile.schedule"),
			InFlightAge: v.GetDuration("reconcile.in_flight_age"),
			RetryMinAge: v.GetDuration("reconcile.retry_min_age"),
			RetryMaxAge: v.GetDuration("reconcile.retry_max_age"),
			BatchSize:   v.GetInt("reconcile.batch_size"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := address.Base58ToAddress(c.WalletAddress); err != nil {
		return fmt.Errorf("tron.wallet_address %q is not a valid TRON address: %w", c.WalletAddress, err)
	}
	if c.USDTContract != "" {
		if _, err := address.Base58ToAddress(c.USDTContract); err != nil {
			return fmt.Errorf("tron.usdt_contract %q is not a valid TRON address: %w", c.USDTContract, err)
		}
	}
	if c.MarkupPercent.IsNegative() || c.MarkupPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("topup.markup_percent must be within [0, 100], got %s", c.MarkupPercent)
	}
	if !c.MinimumAmount.IsPositive() {
		return fmt.Errorf("topup.minimum_amount must be positive, got %s", c.MinimumAmount)
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		return fmt.Errorf("tron.token_decimals out of range: %d", c.TokenDecimals)
	}
	if c.ProviderBaseURL == "" || c.ProviderAPIKey == "" {
		return fmt.Errorf("provider.base_url and provider.api_key are required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
