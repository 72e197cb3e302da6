package bootstrap

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	RedisUrl         string `mapstructure:"REDIS_URL"`
	MongoUri         string `mapstructure:"MONGO_URI"`
	MongoDatabase    string `mapstructure:"MONGO_DATABASE"`
	BotServiceAddr   string `mapstructure:"BOT_SERVICE_ADDR"`
	BotServicePort   string `mapstructure:"BOT_SERVICE_PORT"`
	BotMaxParallel   int64  `mapstructure:"BOT_MAX_PARALLEL"`
	BotTimeoutSec    int    `mapstructure:"BOT_TIMEOUT_SEC"`
	DefaultBotLevel  int    `mapstructure:"DEFAULT_BOT_LEVEL"`
	IsLocalCors      bool   `mapstructure:"LOCAL_CORS"`
	PageLimitGames   int    `mapstructure:"PAGE_LIMIT_GAMES"`
	PageLimitPuzzles int    `mapstructure:"PAGE_LIMIT_PUZZLES"`
	MatchCacheTTLMin int    `mapstructure:"MATCH_CACHE_TTL_MIN"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "shogi")
	v.SetDefault("BOT_SERVICE_ADDR", "")
	v.SetDefault("BOT_SERVICE_PORT", "8082")
	v.SetDefault("BOT_MAX_PARALLEL", 4)
	v.SetDefault("BOT_TIMEOUT_SEC", 30)
	v.SetDefault("DEFAULT_BOT_LEVEL", 2)
	v.SetDefault("LOCAL_CORS", false)
	v.SetDefault("PAGE_LIMIT_GAMES", 20)
	v.SetDefault("PAGE_LIMIT_PUZZLES", 10)
	v.SetDefault("MATCH_CACHE_TTL_MIN", 120)
}

// Setup reads cfgPath (an .env file) on top of the defaults. Environment
// variables override both; a missing file is not an error.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigFile(cfgPath)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) MatchCacheTTL() time.Duration {
	return time.Duration(c.MatchCacheTTLMin) * time.Minute
}

func (c Config) BotTimeout() time.Duration {
	return time.Duration(c.BotTimeoutSec) * time.Second
}
