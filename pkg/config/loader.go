package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

// EnvPrefix prefixes every environment override except the POSTGRES_* variables.
const EnvPrefix = "GDI"

// postgresEnv maps warehouse keys to the conventional Postgres variables.
var postgresEnv = map[string]string{
	"warehouse.user":     "POSTGRES_USER",
	"warehouse.password": "POSTGRES_PASSWORD",
	"warehouse.database": "POSTGRES_DB",
	"warehouse.host":     "POSTGRES_HOST",
	"warehouse.port":     "POSTGRES_PORT",
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, then validates it. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	if err := setDefaults(v, Default()); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to register defaults")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range postgresEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "failed to bind environment").WithDetail("env", env)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "failed to read config file").WithDetail("path", path)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "failed to parse YAML").WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.KindConfig, "failed to write config file").WithDetail("path", path)
	}
	return nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to marshal YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to marshal YAML")
	}
	return buf.Bytes(), nil
}

// setDefaults registers every leaf of cfg as a viper default so that
// AutomaticEnv can override keys that no file mentions.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	flatten(v, "", tree)
	return nil
}

func flatten(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]interface{}); ok {
			flatten(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		out.WriteString(content[:start])
		out.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}
