package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NetworkConfig describes one EVM network scope: its RPC endpoint and the
// token contracts tracked on it (contract address -> token type).
type NetworkConfig struct {
	Name     string
	RPCURL   string
	Tokens   map[string]string
	Decimals int32
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ListenAddr string
	PGDSN      string
	LogLevel   string

	Cooldown time.Duration
	Grant    string

	Networks []NetworkConfig

	BatchSize     uint64
	Lookback      uint64
	MaxResults    int
	Confirmations uint64
	MaxRetries    int
	RetryBackoff  time.Duration

	Interval      time.Duration
	MetricsSpan   uint64
	MinValidators int
	MaxBlockTime  time.Duration

	AuditOut string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAUCET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("cooldown", 24*time.Hour)
	v.SetDefault("grant", "10")
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("lookback", uint64(5000))
	v.SetDefault("max-results", 100)
	v.SetDefault("confirmations", uint64(12))
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("interval", 5*time.Minute)
	v.SetDefault("metrics-span", uint64(20))
	v.SetDefault("min-validators", 3)
	v.SetDefault("max-block-time", 10*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	networks, err := parseNetworks(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:    v.GetString("listen"),
		PGDSN:         v.GetString("pg-dsn"),
		LogLevel:      v.GetString("log-level"),
		Cooldown:      v.GetDuration("cooldown"),
		Grant:         v.GetString("grant"),
		Networks:      networks,
		BatchSize:     v.GetUint64("batch-size"),
		Lookback:      v.GetUint64("lookback"),
		MaxResults:    v.GetInt("max-results"),
		Confirmations: v.GetUint64("confirmations"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Interval:      v.GetDuration("interval"),
		MetricsSpan:   v.GetUint64("metrics-span"),
		MinValidators: v.GetInt("min-validators"),
		MaxBlockTime:  v.GetDuration("max-block-time"),
		AuditOut:      v.GetString("audit-out"),
	}

	return cfg, nil
}

// parseNetworks reads the networks list from the config file, falling back
// to a single network assembled from the --rpc/--network/--token flags.
func parseNetworks(v *viper.Viper) ([]NetworkConfig, error) {
	raw, ok := v.Get("networks").([]interface{})
	if ok && len(raw) > 0 {
		networks := make([]NetworkConfig, 0, len(raw))
		for i, item := range raw {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("networks[%d]: expected a mapping", i)
			}
			network, err := parseNetworkEntry(entry)
			if err != nil {
				return nil, fmt.Errorf("networks[%d]: %w", i, err)
			}
			networks = append(networks, network)
		}
		return networks, nil
	}

	rpcURL := v.GetString("rpc")
	if rpcURL == "" {
		return nil, nil
	}
	name := v.GetString("network")
	if name == "" {
		name = "default"
	}
	return []NetworkConfig{{
		Name:   name,
		RPCURL: rpcURL,
		Tokens: getStringMap(v, "token"),
	}}, nil
}

func parseNetworkEntry(entry map[string]interface{}) (NetworkConfig, error) {
	network := NetworkConfig{}
	for key, value := range entry {
		switch strings.ToLower(key) {
		case "name":
			network.Name = fmt.Sprintf("%v", value)
		case "rpc":
			network.RPCURL = fmt.Sprintf("%v", value)
		case "decimals":
			var decimals int32
			if _, err := fmt.Sscanf(fmt.Sprintf("%v", value), "%d", &decimals); err != nil {
				return NetworkConfig{}, fmt.Errorf("invalid decimals: %v", value)
			}
			network.Decimals = decimals
		case "tokens":
			tokens, ok := value.(map[string]interface{})
			if !ok {
				return NetworkConfig{}, fmt.Errorf("tokens must be a mapping")
			}
			network.Tokens = make(map[string]string, len(tokens))
			for contract, typeName := range tokens {
				network.Tokens[contract] = fmt.Sprintf("%v", typeName)
			}
		}
	}
	if network.Name == "" {
		return NetworkConfig{}, fmt.Errorf("network name is required")
	}
	if network.RPCURL == "" {
		return NetworkConfig{}, fmt.Errorf("network rpc is required")
	}
	return network, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return parseStringMap(strings.Join(items, ","))
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
