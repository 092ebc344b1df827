package main

import (
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

// loadConfig layers, lowest priority first: built-in defaults, the JSON config
// file, MCP4728_ environment variables, command line flags from args.
//
// Keys are dotted: --power-down, MCP4728_POWER_DOWN and {"power":{"down":...}}
// all set "power.down".
func loadConfig(args []string) *config.Config {
	defaultConfig := map[string]interface{}{
		"bus":        "",
		"address":    "0x60",
		"channel":    "",
		"value":      0,
		"voltage":    "",
		"vdd":        "3.3V",
		"reference":  "vdd",
		"gain":       "1",
		"power.down": "normal",
		"latch.now":  false,
		"save":       false,
		"dump":       false,
		"debug":      false,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
		{Short: 'b', Name: "bus"},
		{Short: 'a', Name: "address"},
		{Short: 'n', Name: "channel"},
		{Short: 'v', Name: "value"},
		{Short: 'd', Name: "debug"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags), pflag.WithCommandLine(args)),
		env.New(env.WithEnvPrefix("MCP4728_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "mcp4728.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
