package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ErrConfigTypeRequired is returned by NewViperFromBytes without a format.
var ErrConfigTypeRequired = errors.New("config type is required")

// Viper implements Config. Typed getters come straight from viper; env
// variables override keys with dots mapped to underscores, so DATABASE_URL
// wins over database.url.
type Viper struct {
	*viper.Viper
}

var _ Config = (*Viper)(nil)

func newViper() *Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Viper{Viper: v}
}

// NewViper reads the file at pathFile, with the format taken from its
// extension, and reloads it whenever the file changes.
func NewViper(pathFile string) (*Viper, error) {
	c := newViper()
	c.SetConfigFile(pathFile)
	if err := c.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", filepath.Base(pathFile), err)
	}

	c.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())
	})
	c.WatchConfig()

	return c, nil
}

// NewViperFromBytes reads an in-memory document of configType, such as
// "yaml" or "json". Tests build their config this way.
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigTypeRequired
	}

	c := newViper()
	c.SetConfigType(configType)
	if err := c.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Viper) scaled(key string, unit time.Duration) time.Duration {
	return time.Duration(c.GetInt64(key)) * unit
}

func (c *Viper) GetSecond(key string) time.Duration { return c.scaled(key, time.Second) }

func (c *Viper) GetMinute(key string) time.Duration { return c.scaled(key, time.Minute) }

func (c *Viper) GetHour(key string) time.Duration { return c.scaled(key, time.Hour) }

// GetArray accepts a YAML list or one comma separated string.
func (c *Viper) GetArray(key string) []string {
	items := c.GetStringSlice(key)
	if raw, ok := c.Get(key).(string); ok {
		items = strings.Split(raw, ",")
	}
	return lo.Compact(lo.Map(items, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

func (c *Viper) Close() error { return nil }
