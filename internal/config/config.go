package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	API      API      `mapstructure:"api"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// API holds the configuration for the remote Traderiser platform.
type API struct {
	BaseURL        string        `mapstructure:"base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	Token          string        `mapstructure:"token"`
	AccountType    string        `mapstructure:"account_type"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Server holds the configuration for the web servers.
type Server struct {
	Port       int `mapstructure:"port"`        // read-only dashboard (cmd/ui)
	StatusPort int `mapstructure:"status_port"` // status/control API of a running session, 0 disables it
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the parameters of a trading session.
type Trading struct {
	MarketID             uint          `mapstructure:"market_id"`
	MarketName           string        `mapstructure:"market_name"`
	TradeTypeID          uint          `mapstructure:"trade_type_id"`
	Direction            string        `mapstructure:"direction"`
	Amount               float64       `mapstructure:"amount"`
	UseMartingale        bool          `mapstructure:"use_martingale"`
	TargetProfit         float64       `mapstructure:"target_profit"`
	StopLoss             float64       `mapstructure:"stop_loss"`
	RobotID              uint          `mapstructure:"robot_id"`
	MartingaleMultiplier int64         `mapstructure:"martingale_multiplier"`
	MaxMartingaleLevel   int           `mapstructure:"max_martingale_level"`
	RoundInterval        time.Duration `mapstructure:"round_interval"` // pause between rounds
	CallTimeout          time.Duration `mapstructure:"call_timeout"`   // bound on one placement call, 0 waits for settlement
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file, e.g. API_TOKEN.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.ws_url", "ws://localhost:8000")
	v.SetDefault("api.token", "")
	v.SetDefault("api.account_type", "standard")
	v.SetDefault("api.rate_limit", 5)       // requests per second
	v.SetDefault("api.rate_limit_burst", 1) // burst size
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("trading.market_id", 0)
	v.SetDefault("trading.market_name", "")
	v.SetDefault("trading.trade_type_id", 0)
	v.SetDefault("trading.direction", "buy")
	v.SetDefault("trading.amount", 1)
	v.SetDefault("trading.use_martingale", false)
	v.SetDefault("trading.target_profit", 0)
	v.SetDefault("trading.stop_loss", 0)
	v.SetDefault("trading.robot_id", 0)
	v.SetDefault("trading.martingale_multiplier", 2)
	v.SetDefault("trading.max_martingale_level", 5)
	v.SetDefault("trading.round_interval", 0)
	v.SetDefault("trading.call_timeout", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.status_port", 0)

	v.SetDefault("database.dsn", "traderiser.db")
}
