package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ag-ui/go-engine/pkg/client"
	"github.com/ag-ui/go-engine/pkg/server"
)

// fileConfig is the layout of the --config file. Flags given on the command
// line win over values from the file.
type fileConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Endpoint  string        `yaml:"endpoint"`
	Headers   []string      `yaml:"headers"`
	Client    client.Config `yaml:"client"`
	Server    server.Config `yaml:"server"`
	Sessions  struct {
		RedisAddr   string        `yaml:"redis_addr"`
		IdleTimeout time.Duration `yaml:"idle_timeout"`
	} `yaml:"sessions"`
	NATS struct {
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"nats"`
}

// loadConfig reads path. An empty path yields the zero config.
func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
