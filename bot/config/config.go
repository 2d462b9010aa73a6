package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// ErrMissingToken is returned by Validate when no bot token is configured.
var ErrMissingToken = errors.New("config: BOT_TOKEN is required")

// ProviderConfig stores provider-specific configuration as key-value pairs.
type ProviderConfig map[string]interface{}

// Config wraps viper and provides typed accessors.
type Config struct {
	v         *viper.Viper
	providers map[string]ProviderConfig
}

// Load reads an INI config file and prepares defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TUBEBOT")
	v.AutomaticEnv()
	// The bare BOT_TOKEN variable is accepted as well as TUBEBOT_BOT_TOKEN.
	_ = v.BindEnv("BOT_TOKEN", "TUBEBOT_BOT_TOKEN", "BOT_TOKEN")

	setDefaults(v)

	c := &Config{
		v:         v,
		providers: make(map[string]ProviderConfig),
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		cfg, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadProviders(cfg, c)
		return c, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BotAPI", "https://api.telegram.org")
	v.SetDefault("BotDebug", false)
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("Database", "cache.db")
	v.SetDefault("DBMaxOpenConns", 1)
	v.SetDefault("DBMaxIdleConns", 1)
	v.SetDefault("DBConnMaxLifetimeSec", 3600)
	v.SetDefault("DBSlowQueryMs", 200)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("GormLogLevel", "warn")
	v.SetDefault("DefaultQuality", "high")
	v.SetDefault("Provider", "ytdlp")
	v.SetDefault("AcquireQuotaPerHour", 20)
	v.SetDefault("QuotaCompactMinutes", 10)
	v.SetDefault("MaxSearchLimit", 5)
	v.SetDefault("InlineSearchLimit", 5)
	v.SetDefault("SearchTimeout", 20)
	v.SetDefault("AcquireTimeout", 300)
	v.SetDefault("ThumbnailTimeout", 15)
	v.SetDefault("WorkerPoolSize", 4)
	v.SetDefault("RateLimitPerSecond", 1.0)
	v.SetDefault("RateLimitBurst", 3)
	v.SetDefault("InlineUploadChatID", 0)
	v.SetDefault("BotAdmin", "")
	v.SetDefault("EnableWhitelist", false)
	v.SetDefault("WhitelistChatIDs", "")
}

// Validate checks the keys the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GetString("BOT_TOKEN")) == "" {
		return ErrMissingToken
	}
	if c.GetInt("AcquireTimeout") <= 0 {
		return fmt.Errorf("config: AcquireTimeout must be positive, got %d", c.GetInt("AcquireTimeout"))
	}
	return nil
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 returns an int64 value.
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetSeconds reads an integer number of seconds as a duration.
func (c *Config) GetSeconds(key string) time.Duration {
	return time.Duration(c.v.GetInt(key)) * time.Second
}

// GetIntSlice returns a slice of ints. Comma separated strings from INI are split.
func (c *Config) GetIntSlice(key string) []int {
	ids := c.GetInt64Slice(key)
	if len(ids) == 0 {
		return nil
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}

// GetInt64Slice returns a slice of int64 such as Telegram chat or user IDs.
func (c *Config) GetInt64Slice(key string) []int64 {
	raw := c.v.Get(key)
	switch val := raw.(type) {
	case nil:
		return nil
	case []int:
		out := make([]int64, 0, len(val))
		for _, v := range val {
			out = append(out, int64(v))
		}
		return out
	case []int64:
		return val
	}
	var out []int64
	for _, part := range strings.FieldsFunc(c.v.GetString(key), func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	}) {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// GetProviderConfig retrieves provider-specific configuration by name.
func (c *Config) GetProviderConfig(name string) (ProviderConfig, bool) {
	cfg, ok := c.providers[name]
	return cfg, ok
}

// ProviderNames returns the configured provider section names.
func (c *Config) ProviderNames() []string {
	if len(c.providers) == 0 {
		return nil
	}
	nameList := make([]string, 0, len(c.providers))
	for name := range c.providers {
		nameList = append(nameList, name)
	}
	sort.Strings(nameList)
	return nameList
}

// GetProviderString returns a string value from provider configuration.
// Returns empty string if provider or key not found.
func (c *Config) GetProviderString(provider, key string) string {
	cfg, ok := c.providers[provider]
	if !ok {
		return ""
	}
	val, ok := cfg[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", val)
}

// GetProviderInt returns an int value from provider configuration.
func (c *Config) GetProviderInt(provider, key string) int {
	cfg, ok := c.providers[provider]
	if !ok {
		return 0
	}
	val, ok := cfg[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		num, _ := strconv.Atoi(strings.TrimSpace(v))
		return num
	default:
		return 0
	}
}

// GetProviderBool returns a bool value from provider configuration.
func (c *Config) GetProviderBool(provider, key string) bool {
	cfg, ok := c.providers[provider]
	if !ok {
		return false
	}
	val, ok := cfg[key]
	if !ok {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func loadINI(v *viper.Viper, path string) (*ini.File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	for _, key := range cfg.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return cfg, nil
}

func loadProviders(cfg *ini.File, c *Config) {
	const providerPrefix = "provider."

	for _, section := range cfg.Sections() {
		sectionName := section.Name()
		if sectionName == "" || sectionName == ini.DefaultSection {
			continue
		}
		if !strings.HasPrefix(sectionName, providerPrefix) {
			continue
		}

		name := strings.TrimPrefix(sectionName, providerPrefix)
		providerCfg := make(ProviderConfig)
		for _, key := range section.Keys() {
			providerCfg[key.Name()] = key.Value()
		}
		c.providers[name] = providerCfg
	}
}
