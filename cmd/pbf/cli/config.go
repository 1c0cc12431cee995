// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"m4o.io/osmpbf"
)

// Config is the optional configuration file of the pbf tool. Flags given on
// the command line take precedence.
type Config struct {
	Decoder DecoderConfig `yaml:"decoder"`
	Print   PrintConfig   `yaml:"print"`
}

type DecoderConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	NCpu       uint16 `yaml:"ncpu"`
}

type PrintConfig struct {
	Format string `yaml:"format"`
}

// DefaultConfig is used when no configuration file is given.
func DefaultConfig() *Config {
	return &Config{
		Decoder: DecoderConfig{
			BufferSize: osmpbf.DefaultBufferSize,
			NCpu:       osmpbf.DefaultNCpu(),
		},
		Print: PrintConfig{Format: "text"},
	}
}

var current = DefaultConfig()

// Current returns the configuration loaded for this invocation.
func Current() *Config {
	return current
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// DecoderOptions converts the decoder section into decoder options.
func (c *Config) DecoderOptions() []osmpbf.DecoderOption {
	var opts []osmpbf.DecoderOption

	if c.Decoder.BufferSize > 0 {
		opts = append(opts, osmpbf.WithProtoBufferSize(c.Decoder.BufferSize))
	}

	if c.Decoder.NCpu > 0 {
		opts = append(opts, osmpbf.WithNCpus(c.Decoder.NCpu))
	}

	return opts
}
