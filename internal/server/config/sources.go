package config

import (
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/foxhound/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks the environment variables read into Config.
const EnvPrefix = "FOXHOUND_"

// loadDotenv copies ./.env into the process environment. Variables already
// set win, and a missing file is not an error.
func loadDotenv() {
	_ = godotenv.Load()
}

// parseFile overlays the file passed with -c/-config. JSON is a subset of
// YAML, so both go through the YAML parser.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}
	if err := loadFile(config, path); err != nil {
		panic(err)
	}
}

func loadFile(config *Config, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Clean(path)), yaml.Parser()); err != nil {
		return err
	}
	return k.Unmarshal("", config)
}

// parseEnv overlays FOXHOUND_* variables: FOXHOUND_REDIS_ADDR sets redis_addr.
func parseEnv(config *Config) {
	if err := loadEnv(config); err != nil {
		panic(err)
	}
}

func loadEnv(config *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return err
	}
	return k.Unmarshal("", config)
}
