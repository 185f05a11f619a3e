package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetFloat(key string) (float64, bool)
	GetBool(key string) (bool, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, true
	}
	return 0, false
}

func (e *EnvSource) GetBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetFloat(key string) (float64, bool) {
	if value, exists := f.values[key]; exists {
		if fl, ok := value.(float64); ok {
			return fl, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetBool(key string) (bool, bool) {
	if value, exists := f.values[key]; exists {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// FileSource implements ConfigSource for a TOML config file read through viper.
// VOTEPERFX_VOTE_ACCOUNT is looked up as vote_account.
type FileSource struct {
	v *viper.Viper
}

// NewFileSource reads path. A missing file yields an empty source.
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &FileSource{v: v}, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return &FileSource{v: v}, nil
}

func fileKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}

func (s *FileSource) lookup(key string) (string, bool) {
	if k := fileKey(key); s.v.IsSet(k) {
		return k, true
	}
	if alias, ok := fileAliases[key]; ok && s.v.IsSet(alias) {
		return alias, true
	}
	return "", false
}

func (s *FileSource) GetString(key string) (string, bool) {
	k, ok := s.lookup(key)
	if !ok {
		return "", false
	}
	// TOML arrays resolve to comma separated lists
	if raw, isList := s.v.Get(k).([]interface{}); isList {
		parts := make([]string, 0, len(raw))
		for _, p := range raw {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ","), len(parts) > 0
	}
	value := s.v.GetString(k)
	return value, value != ""
}

func (s *FileSource) GetInt(key string) (int, bool) {
	k, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	return s.v.GetInt(k), true
}

func (s *FileSource) GetFloat(key string) (float64, bool) {
	k, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	return s.v.GetFloat64(k), true
}

func (s *FileSource) GetBool(key string) (bool, bool) {
	k, ok := s.lookup(key)
	if !ok {
		return false, false
	}
	return s.v.GetBool(k), true
}
