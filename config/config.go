// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package config decodes YAML configuration
// for index writers and readers.
//
// An example configuration:
//
//	mode: ratio
//	compat_reads: false
//	block_cache_bytes: 4194304
//	max_buffered_docs: 1000
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/index"
	"github.com/SnellerInc/segcodec/storedfields"

	"sigs.k8s.io/yaml"
)

// Config is the decoded configuration.
// Unset fields take their defaults.
type Config struct {
	// Mode is the compression mode of
	// new segments: "speed" or "ratio".
	Mode string `json:"mode,omitempty"`
	// CompatReads enables reads of format
	// versions outside the production window.
	CompatReads bool `json:"compat_reads,omitempty"`
	// BlockCacheBytes is the size of the
	// decompressed block cache of each
	// stored-fields reader; -1 disables it.
	BlockCacheBytes *int `json:"block_cache_bytes,omitempty"`
	// MaxBufferedDocs seals a segment once
	// it holds that many documents.
	MaxBufferedDocs int `json:"max_buffered_docs,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{Mode: storedfields.SpeedOptimized.String()}
}

// Parse decodes and validates a YAML
// configuration. Unknown fields are errors.
func Parse(buf []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks c for invalid values.
func (c *Config) Validate() error {
	if _, err := c.StoredFieldsMode(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.BlockCacheBytes != nil && *c.BlockCacheBytes < -1 {
		return fmt.Errorf("config: invalid block_cache_bytes %d", *c.BlockCacheBytes)
	}
	if c.MaxBufferedDocs < 0 {
		return fmt.Errorf("config: invalid max_buffered_docs %d", c.MaxBufferedDocs)
	}
	return nil
}

// StoredFieldsMode returns the configured mode.
func (c *Config) StoredFieldsMode() (storedfields.Mode, error) {
	if c.Mode == "" {
		return storedfields.SpeedOptimized, nil
	}
	return storedfields.ParseMode(c.Mode)
}

// ReadOptions returns the reader options
// described by c, logging to logger.
func (c *Config) ReadOptions(logger *log.Logger) codec.ReadOptions {
	o := codec.ReadOptions{
		Compat: c.CompatReads,
		Logger: logger,
	}
	if c.BlockCacheBytes != nil {
		o.BlockCacheBytes = *c.BlockCacheBytes
	}
	return o
}

// WriterOptions returns the index.Writer
// options described by c.
func (c *Config) WriterOptions(logger *log.Logger) ([]index.Option, error) {
	mode, err := c.StoredFieldsMode()
	if err != nil {
		return nil, err
	}
	opts := []index.Option{
		index.WithMode(mode),
		index.WithReadOptions(c.ReadOptions(logger)),
		index.WithMaxBufferedDocs(c.MaxBufferedDocs),
	}
	if logger != nil {
		opts = append(opts, index.WithLogger(logger))
	}
	return opts, nil
}
