package option

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultModel       = "llama3.2"
	DefaultHost        = "http://host.docker.internal:11434"
	DefaultTemperature = 0.7
)

// Config is the persisted user configuration. Fields absent from the file
// keep their built-in defaults.
type Config struct {
	DefaultModel string  `toml:"default_model"`
	OllamaHost   string  `toml:"ollama_host"`
	Temperature  float32 `toml:"temperature"`
	Stream       bool    `toml:"stream"`
}

func Default() Config {
	return Config{
		DefaultModel: DefaultModel,
		OllamaHost:   DefaultHost,
		Temperature:  DefaultTemperature,
		Stream:       true,
	}
}

// ConfigPath returns the default location of the config file,
// <user config dir>/assistant-cli/config.toml.
func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "assistant-cli", "config.toml"), nil
}

// LoadConfig reads the TOML file at path. A missing file is not an error and
// yields the defaults; keys absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides layers environment variables over the loaded values.
// Flags are applied after this, so flags win over the environment.
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("ASSISTANT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if host := os.Getenv("ASSISTANT_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if temp := os.Getenv("ASSISTANT_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 32); err == nil {
			c.Temperature = float32(v)
		}
	}
	if v := os.Getenv("ASSISTANT_NO_STREAM"); v == "1" || strings.EqualFold(v, "true") {
		c.Stream = false
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks field ranges and returns one error per violation.
func (c Config) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, ValidationError{"default_model", "must not be empty"})
	}
	if u, err := url.Parse(c.OllamaHost); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{"ollama_host", fmt.Sprintf("%q is not an http(s) URL", c.OllamaHost)})
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, ValidationError{"temperature", fmt.Sprintf("%.2f is outside [0, 2]", c.Temperature)})
	}
	return errs
}

const configHeader = `# assistant-cli configuration
# Defaults apply to any key removed from this file.
`

// SaveConfig writes the config as TOML, creating the parent directory if
// needed. The file is written 0600.
func SaveConfig(cfg Config, path string) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
