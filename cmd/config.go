// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional config file. Keys map onto the persistent
// flags of the same name with '_' replaced by '-'.
type fileConfig struct {
	Port             string `yaml:"port" toml:"port"`
	BaudRates        []int  `yaml:"baud_rates" toml:"baud_rates"`
	Driver           string `yaml:"driver" toml:"driver"`
	URL              string `yaml:"url" toml:"url"`
	Username         string `yaml:"username" toml:"username"`
	NoSSLVerify      bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`
	TCP              string `yaml:"tcp" toml:"tcp"`
	HandshakeTimeout string `yaml:"handshake_timeout" toml:"handshake_timeout"`
	CommandTimeout   string `yaml:"command_timeout" toml:"command_timeout"`
	SweepTimeout     string `yaml:"sweep_timeout" toml:"sweep_timeout"`
	MaxFrameLen      int    `yaml:"max_frame_len" toml:"max_frame_len"`
	FilterUSB        bool   `yaml:"filter_usb" toml:"filter_usb"`
	LogLevel         string `yaml:"log_level" toml:"log_level"`
}

// values renders the file settings as flag strings, keyed by config key.
func (c fileConfig) values() map[string]string {
	rates := make([]string, len(c.BaudRates))
	for i, r := range c.BaudRates {
		rates[i] = strconv.Itoa(r)
	}
	return map[string]string{
		"port":              c.Port,
		"baud_rates":        strings.Join(rates, ","),
		"driver":            c.Driver,
		"url":               c.URL,
		"username":          c.Username,
		"no_ssl_verify":     strconv.FormatBool(c.NoSSLVerify),
		"tcp":               c.TCP,
		"handshake_timeout": c.HandshakeTimeout,
		"command_timeout":   c.CommandTimeout,
		"sweep_timeout":     c.SweepTimeout,
		"max_frame_len":     strconv.Itoa(c.MaxFrameLen),
		"filter_usb":        strconv.FormatBool(c.FilterUSB),
		"log_level":         c.LogLevel,
	}
}

// loadConfigFile decodes path by extension and reports which keys it sets.
func loadConfigFile(path string) (fileConfig, func(key string) bool, error) {
	var cfg fileConfig

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, nil, fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, nil, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
		}
		return cfg, func(key string) bool { return meta.IsDefined(key) }, nil

	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, nil, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parse config: %w", err)
		}
		var keys map[string]any
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return cfg, nil, fmt.Errorf("parse config: %w", err)
		}
		for key := range keys {
			if _, ok := cfg.values()[key]; !ok {
				return cfg, nil, fmt.Errorf("load config: unknown key %q", key)
			}
		}
		return cfg, func(key string) bool { _, ok := keys[key]; return ok }, nil

	default:
		return cfg, nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// applyConfigFile sets every flag the file defines and the command line left
// alone.
func applyConfigFile(flags *pflag.FlagSet, path string) error {
	cfg, defined, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	for key, value := range cfg.values() {
		if !defined(key) || (key == "baud_rates" && value == "") {
			continue
		}
		name := strings.ReplaceAll(key, "_", "-")
		if flags.Changed(name) {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
	}
	return nil
}
