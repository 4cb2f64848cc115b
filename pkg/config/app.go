package config

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AppConfig holds the settings shared by the api, worker and vaultctl binaries.
type AppConfig struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPassword string
	EventsEnabled    bool

	VaultProgramID   solana.PublicKey
	KeystoreDir      string
	KeystorePassword string

	RateLimitRPS   float64
	RateLimitBurst int
	StatCron       string
}

var App *AppConfig

// Load reads configuration from the environment, optionally overlaid on a
// config file named by CONFIG_FILE.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_PATH", "vaultcontrol.db")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("VAULT_PROGRAM_ID", "3pRCczvKX3eUmgwHpf9jLjoWykLw19CT2TXyisSweL5w")
	v.SetDefault("KEYSTORE_DIR", "configs/keystore")
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("STAT_CRON", "0 */5 * * * *")

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	programID, err := solana.PublicKeyFromBase58(v.GetString("VAULT_PROGRAM_ID"))
	if err != nil {
		return nil, fmt.Errorf("invalid VAULT_PROGRAM_ID: %w", err)
	}

	cfg := &AppConfig{
		Port:             v.GetString("PORT"),
		AllowedOrigins:   splitCSV(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:           v.GetString("DB_HOST"),
		DBPort:           v.GetString("DB_PORT"),
		DBUser:           v.GetString("DB_USER"),
		DBPassword:       v.GetString("DB_PASSWORD"),
		DBName:           v.GetString("DB_NAME"),
		DBPath:           v.GetString("DB_PATH"),
		RabbitMQHost:     v.GetString("RABBITMQ_HOST"),
		RabbitMQPort:     v.GetString("RABBITMQ_PORT"),
		RabbitMQUser:     v.GetString("RABBITMQ_USER"),
		RabbitMQPassword: v.GetString("RABBITMQ_PASSWORD"),
		EventsEnabled:    v.GetBool("EVENTS_ENABLED"),
		VaultProgramID:   programID,
		KeystoreDir:      v.GetString("KEYSTORE_DIR"),
		KeystorePassword: v.GetString("KEYSTORE_PASSWORD"),
		RateLimitRPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
		StatCron:         v.GetString("STAT_CRON"),
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}

	App = cfg
	return cfg, nil
}

// ConfigureLogging applies LOG_LEVEL to the standard logrus logger.
func ConfigureLogging(cfg *AppConfig) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
