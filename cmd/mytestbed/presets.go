package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"mytestbed/domain"
	"mytestbed/node"
)

// ErrUnknownPreset is returned by buildPreset for names that were never
// registered.
var ErrUnknownPreset = errors.New("unknown preset")

// presetBuilder builds one ready-to-run single-process topology.
type presetBuilder func() *Config

var presets = make(map[string]presetBuilder)

// registerPreset adds a preset by name. Call from init in this file.
func registerPreset(name string, build presetBuilder) {
	presets[name] = build
}

// presetNames returns the registered names, sorted for stable messages.
func presetNames() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// buildPreset builds and validates the named preset.
//
// Returns: the topology, or ErrUnknownPreset (wrapped with the registered names) when the name is not known.
//
// Called from the run subcommand when --preset is set.
func buildPreset(name string) (*Config, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownPreset, name, strings.Join(presetNames(), ", "))
	}
	cfg := build()
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return cfg, nil
}

func init() {
	registerPreset("two-tier", twoTierPreset)
	registerPreset("single-tier", singleTierPreset)
}

// twoTierPreset is the default measurement chain: source:1000 → lb:2000 →
// services 2001/2002 → lb:3000 → terminal services 3001/3002 → source.
// Four stamping hops, so the collector reports T1..T4 plus the derived
// return leg T5.
func twoTierPreset() *Config {
	cfg := &Config{
		TopologyDepth: 4,
		Nodes: []NodeConfig{
			{
				Name:            "source",
				Role:            domain.RoleSource,
				Port:            1000,
				Target:          domain.Address{Host: "127.0.0.1", Port: 2000},
				ClientID:        1,
				Mode:            node.SourceModeFeeding,
				MessageCount:    10,
				ArrivalDelay:    2 * time.Second,
				SampleThreshold: 8,
			},
			{
				Name:          "lb1",
				Role:          domain.RoleLoadBalancer,
				Port:          2000,
				QueueCapacity: 100,
				ServiceHost:   "127.0.0.1",
				ServiceCount:  2,
			},
			serviceEntry("svc1-1", 2001, domain.Address{Host: "127.0.0.1", Port: 3000}, false),
			serviceEntry("svc1-2", 2002, domain.Address{Host: "127.0.0.1", Port: 3000}, false),
			{
				Name:          "lb2",
				Role:          domain.RoleLoadBalancer,
				Port:          3000,
				QueueCapacity: 100,
				ServiceHost:   "127.0.0.1",
				ServiceCount:  2,
			},
			serviceEntry("svc2-1", 3001, domain.Address{Host: "127.0.0.1", Port: 1000}, true),
			serviceEntry("svc2-2", 3002, domain.Address{Host: "127.0.0.1", Port: 1000}, true),
		},
	}
	return cfg
}

// singleTierPreset is the minimal chain: source:1000 → lb:2000 → terminal
// services 2001/2002 → source. Two stamping hops (T1, T2, return leg T3).
func singleTierPreset() *Config {
	return &Config{
		TopologyDepth: 2,
		Nodes: []NodeConfig{
			{
				Name:            "source",
				Role:            domain.RoleSource,
				Port:            1000,
				Target:          domain.Address{Host: "127.0.0.1", Port: 2000},
				ClientID:        1,
				Mode:            node.SourceModeFeeding,
				MessageCount:    10,
				ArrivalDelay:    time.Second,
				SampleThreshold: 8,
			},
			{
				Name:          "lb1",
				Role:          domain.RoleLoadBalancer,
				Port:          2000,
				QueueCapacity: 100,
				ServiceHost:   "127.0.0.1",
				ServiceCount:  2,
			},
			serviceEntry("svc1", 2001, domain.Address{Host: "127.0.0.1", Port: 1000}, true),
			serviceEntry("svc2", 2002, domain.Address{Host: "127.0.0.1", Port: 1000}, true),
		},
	}
}

// serviceEntry builds one preset service with the stock simulated delay
// (gaussian, 500ms mean, 100ms std).
func serviceEntry(name string, port int, target domain.Address, terminal bool) NodeConfig {
	return NodeConfig{
		Name:            name,
		Role:            domain.RoleService,
		Port:            port,
		Target:          target,
		TargetIsSource:  terminal,
		ServiceTimeMean: 500 * time.Millisecond,
		ServiceTimeStd:  100 * time.Millisecond,
		RetryAttempts:   defaultRetryAttempts,
		RetryInterval:   defaultRetryInterval,
	}
}
