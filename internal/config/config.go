// Package config loads process configuration for the timetable commands.
//
// Values come from, in increasing precedence: defaults, an optional config
// file (any format viper reads, selected by extension) and environment
// variables prefixed with TIMETABLE_, where dots become underscores:
//
//	TIMETABLE_STORE_NUM_SHARDS=8
//	TIMETABLE_STORE_UNIQUE_ATTRIBUTES=name,room
//	TIMETABLE_AWS_PROFILE=school
//	TIMETABLE_LOG_LEVEL=debug
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jacentio/timetable/internal/logging"
	"github.com/jacentio/timetable/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TIMETABLE"

// Config is the full process configuration.
type Config struct {
	Store store.Config `mapstructure:"store"`
	AWS   AWS          `mapstructure:"aws"`
	Log   Log          `mapstructure:"log"`
}

// AWS selects credentials and the DynamoDB endpoint.
type AWS struct {
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`

	// Endpoint overrides the DynamoDB endpoint, e.g. for DynamoDB Local.
	Endpoint string `mapstructure:"endpoint"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default. Keys unknown to viper
// are not read from the environment by Unmarshal, so each one must appear here.
func SetDefaults(v *viper.Viper) {
	d := store.DefaultConfig()
	v.SetDefault("store.entity_table", d.EntityTable)
	v.SetDefault("store.relationship_table", d.RelationshipTable)
	v.SetDefault("store.unique_table", d.UniqueTable)
	v.SetDefault("store.num_shards", d.NumShards)
	v.SetDefault("store.unique_attributes", []string{})

	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logging.FormatText))
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from defaults, the file at path when path is not
// empty, and the environment.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the commands cannot use.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Store.NumShards < 0 {
		return fmt.Errorf("store.num_shards must not be negative, got %d", c.Store.NumShards)
	}
	return nil
}
