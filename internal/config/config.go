// Package config loads service settings from a YAML or JSON file and
// AITUBERFLOW_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AITUBERFLOW_"

// DefaultPath is read when no config file is given. A missing default file
// just means defaults.
const DefaultPath = "aituberflow.yaml"

// Duration accepts Go duration strings ("5s") or plain seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.parse(n.Value)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return d.parse(fmt.Sprint(raw))
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ExecutorConfig struct {
	SetupTimeout Duration `yaml:"setup_timeout" json:"setup_timeout"`
	GraceTimeout Duration `yaml:"grace_timeout" json:"grace_timeout"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	RetainedRuns int      `yaml:"retained_runs" json:"retained_runs"`
}

// GraphsConfig selects where graphs are loaded from: "file", "loam",
// "memory" or "redis".
type GraphsConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Dir     string `yaml:"dir" json:"dir"`
}

type HTTPConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// RedisConfig is used by the redis graph store, run lock and chat bridge.
// An empty Addr disables all three.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	LockTTL  Duration `yaml:"lock_ttl" json:"lock_ttl"`
	Channels []string `yaml:"channels" json:"channels"`
}

type LLMConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	Model     string `yaml:"model" json:"model"`
}

// CommandsConfig points at the allow-list of external programs command
// nodes may run.
type CommandsConfig struct {
	File string `yaml:"file" json:"file"`
	// Dir is the working directory of the programs.
	Dir string `yaml:"dir" json:"dir"`
}

// Config is the full service configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Executor ExecutorConfig `yaml:"executor" json:"executor"`
	Graphs   GraphsConfig   `yaml:"graphs" json:"graphs"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	Commands CommandsConfig `yaml:"commands" json:"commands"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Executor: ExecutorConfig{
			SetupTimeout: Duration(10 * time.Second),
			GraceTimeout: Duration(5 * time.Second),
			PoolSize:     256,
			RetainedRuns: 32,
		},
		Graphs: GraphsConfig{Backend: "file", Dir: "graphs"},
		HTTP:   HTTPConfig{Addr: ":8001", CORSOrigins: []string{"*"}},
		Redis: RedisConfig{
			Prefix:   "aituberflow",
			LockTTL:  Duration(time.Minute),
			Channels: []string{"chat.message"},
		},
		LLM: LLMConfig{APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path tries DefaultPath and tolerates its absence.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.readFile(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			err = nil
		}
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	// Default to YAML
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from AITUBERFLOW_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	num := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}
	dur := func(dst *Duration) func(string) error {
		return func(v string) error { return dst.parse(v) }
	}
	list := func(dst *[]string) func(string) error {
		return func(v string) error {
			*dst = nil
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					*dst = append(*dst, part)
				}
			}
			return nil
		}
	}

	overrides := []struct {
		name  string
		apply func(string) error
	}{
		{"LOG_LEVEL", str(&c.Log.Level)},
		{"LOG_FORMAT", str(&c.Log.Format)},
		{"SETUP_TIMEOUT", dur(&c.Executor.SetupTimeout)},
		{"GRACE_TIMEOUT", dur(&c.Executor.GraceTimeout)},
		{"POOL_SIZE", num(&c.Executor.PoolSize)},
		{"RETAINED_RUNS", num(&c.Executor.RetainedRuns)},
		{"GRAPH_BACKEND", str(&c.Graphs.Backend)},
		{"GRAPH_DIR", str(&c.Graphs.Dir)},
		{"HTTP_ADDR", str(&c.HTTP.Addr)},
		{"CORS_ORIGINS", list(&c.HTTP.CORSOrigins)},
		{"REDIS_ADDR", str(&c.Redis.Addr)},
		{"REDIS_PASSWORD", str(&c.Redis.Password)},
		{"REDIS_DB", num(&c.Redis.DB)},
		{"REDIS_PREFIX", str(&c.Redis.Prefix)},
		{"REDIS_LOCK_TTL", dur(&c.Redis.LockTTL)},
		{"REDIS_CHANNELS", list(&c.Redis.Channels)},
		{"LLM_BASE_URL", str(&c.LLM.BaseURL)},
		{"LLM_API_KEY_ENV", str(&c.LLM.APIKeyEnv)},
		{"LLM_MODEL", str(&c.LLM.Model)},
		{"COMMANDS_FILE", str(&c.Commands.File)},
		{"COMMANDS_DIR", str(&c.Commands.Dir)},
	}
	for _, o := range overrides {
		v, ok := lookup(EnvPrefix + o.name)
		if !ok {
			continue
		}
		if err := o.apply(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
		}
	}
	return nil
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	var problems []string
	switch c.Graphs.Backend {
	case "file", "loam", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "graphs.backend redis needs redis.addr")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown graphs.backend %q", c.Graphs.Backend))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}
	if c.Executor.SetupTimeout <= 0 {
		problems = append(problems, "executor.setup_timeout must be positive")
	}
	if c.Executor.GraceTimeout <= 0 {
		problems = append(problems, "executor.grace_timeout must be positive")
	}
	if c.Executor.PoolSize <= 0 {
		problems = append(problems, "executor.pool_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
