package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	"github.com/autama/autama/backend/internal/nucleus"
)

const (
	envPrefix      = "AUTAMA"
	appDir         = "autama"
	configFileName = "config.toml"

	BackendLocal = "local"
	BackendArk   = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Nucleus NucleusConfig
	Store   StoreConfig
	AI      AIConfig
	Bacon   BaconConfig
	Auth    AuthConfig

	// File is the config file that was read, empty when none was found.
	File string
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// NucleusConfig configures the conversation engine.
type NucleusConfig struct {
	Backend         string
	ModelCheckpoint string
	DatasetPath     string
	DatasetCache    string
	VocabSize       int
	Seed            int64
	ModelTimeout    time.Duration
	Sampling        nucleus.SamplingConfig
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
	DSN    string
}

// BaconConfig configures personality generation.
type BaconConfig struct {
	Amount     int
	MaxAmount  int
	TraitsFile string
}

// AuthConfig configures accounts. When AdminUsername is set a staff account
// is ensured at start-up.
type AuthConfig struct {
	BcryptCost    int
	AdminUsername string
	AdminPassword string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set ARK_API_KEY and Model, or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// NewViper returns a viper instance reading AUTAMA_* variables and the
// legacy PORT and ARK_* names.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	aliases := map[string][]string{
		"server.port":    {"AUTAMA_SERVER_PORT", "PORT"},
		"ai.api_key":     {"AUTAMA_AI_API_KEY", "ARK_API_KEY"},
		"ai.access_key":  {"AUTAMA_AI_ACCESS_KEY", "ARK_ACCESS_KEY"},
		"ai.secret_key":  {"AUTAMA_AI_SECRET_KEY", "ARK_SECRET_KEY"},
		"ai.model":       {"AUTAMA_AI_MODEL", "Model"},
		"ai.base_url":    {"AUTAMA_AI_BASE_URL", "ARK_BASE_URL"},
		"ai.region":      {"AUTAMA_AI_REGION", "ARK_REGION"},
		"ai.temperature": {"AUTAMA_AI_TEMPERATURE", "ARK_TEMPERATURE"},
		"ai.top_p":       {"AUTAMA_AI_TOP_P", "ARK_TOP_P"},
		"ai.max_tokens":  {"AUTAMA_AI_MAX_TOKENS", "ARK_MAX_TOKENS"},
	}
	for key, envs := range aliases {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// Load 从环境变量和配置文件加载配置。
func Load() (*Config, error) {
	return LoadFrom(NewViper())
}

// LoadFrom reads the config file (AUTAMA_CONFIG, an explicit
// v.SetConfigFile, or $XDG_CONFIG_HOME/autama/config.toml) and builds the
// Config from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	file, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	nucleusCfg, err := loadNucleusConfig(v)
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	baconCfg, err := loadBaconConfig(v)
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Nucleus: nucleusCfg,
		Store:   store,
		AI:      ai,
		Bacon:   baconCfg,
		Auth:    auth,
		File:    file,
	}, nil
}

func readConfigFile(v *viper.Viper) (string, error) {
	if v.ConfigFileUsed() == "" {
		if path := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); path != "" {
			v.SetConfigFile(path)
		} else if path, err := xdg.SearchConfigFile(filepath.Join(appDir, configFileName)); err == nil {
			v.SetConfigFile(path)
		} else {
			return "", nil
		}
	}

	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
	}
	return v.ConfigFileUsed(), nil
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := getString(v, "server.port")
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadNucleusConfig(v *viper.Viper) (NucleusConfig, error) {
	sampling := nucleus.DefaultSamplingConfig()

	if val, err := parseOptionalFloat(v, "nucleus.temperature"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.Temperature = *val
	}
	if val, err := parseOptionalInt(v, "nucleus.top_k"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.TopK = *val
	}
	if val, err := parseOptionalFloat(v, "nucleus.top_p"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.TopP = *val
	}
	if val, err := parseOptionalInt(v, "nucleus.min_length"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.MinLength = *val
	}
	if val, err := parseOptionalInt(v, "nucleus.max_length"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.MaxLength = *val
	}
	if val, err := parseOptionalInt(v, "nucleus.max_history"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		sampling.MaxHistory = *val
	}
	noSample, err := parseBool(v, "nucleus.no_sample", false)
	if err != nil {
		return NucleusConfig{}, err
	}
	sampling.NoSample = noSample

	if err := sampling.Validate(); err != nil {
		return NucleusConfig{}, err
	}

	backend := strings.ToLower(getString(v, "nucleus.backend"))
	if backend == "" {
		backend = BackendLocal
	}
	if backend != BackendLocal && backend != BackendArk {
		return NucleusConfig{}, fmt.Errorf("invalid nucleus.backend value %q", backend)
	}

	var seed int64
	if raw := getString(v, "nucleus.seed"); raw != "" {
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NucleusConfig{}, fmt.Errorf("invalid nucleus.seed value %q: %w", raw, err)
		}
		seed = val
	}

	timeout := 30 * time.Second
	if val, err := parseOptionalDuration(v, "nucleus.model_timeout"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		timeout = *val
	}

	vocab := 8000
	if val, err := parseOptionalInt(v, "nucleus.vocab_size"); err != nil {
		return NucleusConfig{}, err
	} else if val != nil {
		vocab = *val
	}

	return NucleusConfig{
		Backend:         backend,
		ModelCheckpoint: getString(v, "nucleus.model_checkpoint"),
		DatasetPath:     getString(v, "nucleus.dataset_path"),
		DatasetCache:    getOrDefault(v, "nucleus.dataset_cache", filepath.Join(xdg.CacheHome, appDir, "dataset_cache.json")),
		VocabSize:       vocab,
		Seed:            seed,
		ModelTimeout:    timeout,
		Sampling:        sampling,
	}, nil
}

func loadStoreConfig(v *viper.Viper) (StoreConfig, error) {
	driver := strings.ToLower(getOrDefault(v, "store.driver", "sqlite"))
	switch driver {
	case "sqlite", "libsql", "memory":
	default:
		return StoreConfig{}, fmt.Errorf("invalid store.driver value %q", driver)
	}

	return StoreConfig{
		Driver: driver,
		DSN:    getOrDefault(v, "store.dsn", filepath.Join(xdg.DataHome, appDir, "autama.db")),
	}, nil
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ai.temperature")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ai.top_p")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ai.max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      getString(v, "ai.api_key"),
		AccessKey:   getString(v, "ai.access_key"),
		SecretKey:   getString(v, "ai.secret_key"),
		Model:       getString(v, "ai.model"),
		BaseURL:     getOrDefault(v, "ai.base_url", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getOrDefault(v, "ai.region", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func loadBaconConfig(v *viper.Viper) (BaconConfig, error) {
	amount := 2
	if val, err := parseOptionalInt(v, "bacon.amount"); err != nil {
		return BaconConfig{}, err
	} else if val != nil {
		if *val < 1 {
			return BaconConfig{}, fmt.Errorf("invalid bacon.amount value %d", *val)
		}
		amount = *val
	}

	maxAmount := 100
	if val, err := parseOptionalInt(v, "bacon.max_amount"); err != nil {
		return BaconConfig{}, err
	} else if val != nil {
		if *val < 1 {
			return BaconConfig{}, fmt.Errorf("invalid bacon.max_amount value %d", *val)
		}
		maxAmount = *val
	}
	if amount > maxAmount {
		return BaconConfig{}, fmt.Errorf("bacon.amount %d exceeds bacon.max_amount %d", amount, maxAmount)
	}

	return BaconConfig{
		Amount:     amount,
		MaxAmount:  maxAmount,
		TraitsFile: getString(v, "bacon.traits_file"),
	}, nil
}

func loadAuthConfig(v *viper.Viper) (AuthConfig, error) {
	cost := 0
	if val, err := parseOptionalInt(v, "auth.bcrypt_cost"); err != nil {
		return AuthConfig{}, err
	} else if val != nil {
		cost = *val
	}

	return AuthConfig{
		BcryptCost:    cost,
		AdminUsername: getString(v, "auth.admin_username"),
		AdminPassword: getString(v, "auth.admin_password"),
	}, nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func getOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := getString(v, key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v *viper.Viper, key string, defaultValue bool) (bool, error) {
	raw := getString(v, key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDuration(v *viper.Viper, key string) (*time.Duration, error) {
	value := getString(v, key)
	if value == "" {
		return nil, nil
	}

	// bare numbers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		d := time.Duration(secs) * time.Second
		return &d, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
