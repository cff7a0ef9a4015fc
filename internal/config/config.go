/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the abdoc configuration file and environment overlay.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvModelName is the alias of the model configured from environment variables.
const EnvModelName = "env"

type Config struct {
	Models       []llm.ModelConfig `yaml:"models"`
	DefaultModel string            `yaml:"default_model"`
	Retries      int               `yaml:"retries"` // transport retries per model call
	SystemPrompt string            `yaml:"system_prompt"` // path to a go-template system prompt, optional

	DataDir      string `yaml:"data_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	LogLevel     string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RatePerMinute caps generation requests per user, 0 disables the limit.
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

func Default() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "info",
		Server: ServerConfig{
			Addr:          ":8080",
			RatePerMinute: 10,
			Burst:         3,
		},
	}
}

// Load reads the configuration with Read and validates the result.
func Load(path string) (Config, error) {
	c, err := Read(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Read decodes path (when set) over the defaults and applies the environment.
// The result is not validated.
func Read(path string) (Config, error) {
	c := Default()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(bs, &c); err != nil {
			return c, errors.Wrapf(err, "decode %s", path)
		}
	}
	c.ApplyEnv(os.Getenv)
	return c, nil
}

// ApplyEnv overlays API_TYPE, API_KEY, MODEL_NAME and BASE_URL as the
// default model, plus ABDOC_* overrides for the other settings.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if typ := getenv("API_TYPE"); typ != "" {
		m := llm.ModelConfig{
			Name:      EnvModelName,
			APIType:   llm.NewModelType(typ),
			APIKey:    getenv("API_KEY"),
			ModelName: getenv("MODEL_NAME"),
			BaseURL:   getenv("BASE_URL"),
		}
		replaced := false
		for i := range c.Models {
			if c.Models[i].Name == EnvModelName {
				c.Models[i] = m
				replaced = true
			}
		}
		if !replaced {
			c.Models = append(c.Models, m)
		}
		c.DefaultModel = EnvModelName
	}
	if v := getenv("ABDOC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("ABDOC_TEMPLATES_DIR"); v != "" {
		c.TemplatesDir = v
	}
	if v := getenv("ABDOC_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("ABDOC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("ABDOC_RATE_PER_MINUTE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RatePerMinute = f
		} else {
			log.Warn("ignoring ABDOC_RATE_PER_MINUTE=%q: %v", v, err)
		}
	}
}

func (c Config) Validate() error {
	if len(c.Models) == 0 {
		return errors.New("no model configured: set API_TYPE, API_KEY and MODEL_NAME or add models to the config file")
	}
	names := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		name := m.Name
		if name == "" {
			name = m.ModelName
		}
		if m.APIType == llm.ModelTypeUnknown {
			return errors.Errorf("model #%d (%s): unknown type", i, name)
		}
		if m.ModelName == "" {
			return errors.Errorf("model #%d (%s): model_name is required", i, name)
		}
		if m.APIKey == "" && m.APIType != llm.ModelTypeOllama {
			return errors.Errorf("model %s: api_key is required", name)
		}
		names[name] = true
	}
	if c.DefaultModel != "" && !names[c.DefaultModel] {
		return errors.Errorf("default_model %q is not configured", c.DefaultModel)
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	if c.Server.RatePerMinute < 0 || c.Server.Burst < 0 {
		return errors.New("server rate limit must not be negative")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	return nil
}
