package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"questline/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	User   UserConfig        `toml:"user"`
	DB     database.DBConfig `toml:"db"`
	Spaces SpacesConfig      `toml:"spaces"`
	Notify NotifyConfig      `toml:"notify"`
	Legacy LegacyConfig      `toml:"legacy"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type UserConfig struct {
	ID string `toml:"id"`
}

type SpacesConfig struct {
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	ItemRoot string `toml:"itemroot"`
}

type NotifyConfig struct {
	Enabled   bool         `toml:"enabled"`
	WebhookID snowflake.ID `toml:"webhook_id"`
	Token     string       `toml:"token"`
}

type LegacyConfig struct {
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
	DataDir  string `toml:"data_dir"`
}
