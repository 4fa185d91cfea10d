package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mytestbed/domain"
	"mytestbed/node"

	"gopkg.in/yaml.v3"
)

// Env variable names.
const (
	envConfigPath = "CONFIG_PATH"
	envNodeName   = "NODE_NAME"
)

// ErrUnknownRole is returned for a node whose role is not source,
// loadbalancer or service.
var ErrUnknownRole = errors.New("unknown node role")

// ErrUnknownNode is returned by FindNode when the config has no node with
// the requested name.
var ErrUnknownNode = errors.New("unknown node name")

// Config defaults applied by LoadConfig.
const (
	defaultQueueCapacity = 100
	defaultServiceHost   = "127.0.0.1"
	defaultRetryAttempts = 50
	defaultRetryInterval = 100 * time.Millisecond
	defaultClientID      = 1
	defaultRedisPrefix   = "mytestbed"
)

// Config is the full topology configuration loaded by LoadConfig from the
// YAML file. One file describes every node of the testbed; the role
// subcommands select a single node by name, the run subcommand starts all of
// them in one process. TopologyDepth is the number of hops a message
// traverses before returning to the source and drives the collector's
// fixed-offset extraction; it is declared once here and never hard-coded.
type Config struct {
	LogFile       string
	TopologyDepth int
	Timeouts      TimeoutConfig
	Results       ResultsConfig
	Nodes         []NodeConfig
}

// TimeoutConfig holds the per-operation transport deadlines shared by every
// node in the file. Zero values fall back to the transport defaults.
type TimeoutConfig struct {
	Read  time.Duration
	Write time.Duration
	Ping  time.Duration
	Dial  time.Duration
}

// ResultsConfig selects the result sinks. Empty SQLiteDir disables the run
// database, empty RedisAddr disables the redis publisher; an empty RunID gets
// a generated id at startup so both sinks share it.
type ResultsConfig struct {
	SQLiteDir   string
	RedisAddr   string
	RedisPrefix string
	RunID       string
}

// NodeConfig describes one node of the topology. Which fields apply depends
// on Role: a loadbalancer uses QueueCapacity/ServiceHost/ServiceCount, a
// service uses Target/TargetIsSource/ServiceTime*/Retry*, a source uses
// Target/ClientID/Mode/MessageCount/ArrivalDelay/SampleThreshold. StatusPort
// enables the diagnostics API when positive.
type NodeConfig struct {
	Name       string
	Role       domain.Role
	Port       int
	StatusPort int

	// loadbalancer
	QueueCapacity int
	ServiceHost   string
	ServiceCount  int

	// service
	Target          domain.Address
	TargetIsSource  bool
	ServiceTimeMean time.Duration
	ServiceTimeStd  time.Duration
	RetryAttempts   int
	RetryInterval   time.Duration

	// source
	ClientID        int
	Mode            node.SourceMode
	MessageCount    int
	ArrivalDelay    time.Duration
	SampleThreshold int
}

// yamlConfig is the root struct for YAML unmarshalling; durations are plain
// millisecond integers on disk.
type yamlConfig struct {
	LogFile       string       `yaml:"log_file"`
	TopologyDepth int          `yaml:"topology_depth"`
	Timeouts      yamlTimeouts `yaml:"timeouts"`
	Results       yamlResults  `yaml:"results"`
	Nodes         []yamlNode   `yaml:"nodes"`
}

// yamlTimeouts holds the transport deadlines in milliseconds (0 = default).
type yamlTimeouts struct {
	ReadMs  int `yaml:"read_ms"`
	WriteMs int `yaml:"write_ms"`
	PingMs  int `yaml:"ping_ms"`
	DialMs  int `yaml:"dial_ms"`
}

// yamlResults holds the result sink settings (all optional).
type yamlResults struct {
	SQLiteDir   string `yaml:"sqlite_dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	RunID       string `yaml:"run_id"`
}

// yamlNode is one node entry; role selects which of the remaining fields are
// read.
type yamlNode struct {
	Name       string `yaml:"name"`
	Role       string `yaml:"role"`
	Port       int    `yaml:"port"`
	StatusPort int    `yaml:"status_port"`

	QueueCapacity int    `yaml:"queue_capacity"`
	ServiceHost   string `yaml:"service_host"`
	ServiceCount  int    `yaml:"service_count"`

	Target         string `yaml:"target"`
	TargetIsSource bool   `yaml:"target_is_source"`
	ServiceTimeMs  int    `yaml:"service_time_ms"`
	ServiceStdMs   int    `yaml:"service_std_ms"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryDelayMs   int    `yaml:"retry_delay_ms"`

	ClientID        int    `yaml:"client_id"`
	Mode            string `yaml:"mode"`
	MessageCount    int    `yaml:"message_count"`
	ArrivalDelayMs  int    `yaml:"arrival_delay_ms"`
	SampleThreshold int    `yaml:"sample_threshold"`
}

// loadYAMLConfig reads the YAML file at path and unmarshals it into yamlConfig.
//
// Parameter path — absolute path to the file (LoadConfig converts relative paths via filepath.Abs).
//
// Returns: (*yamlConfig, nil) on successful read and yaml.Unmarshal; (nil, error) on os.ReadFile or yaml.Unmarshal error.
//
// Called only from LoadConfig.
func loadYAMLConfig(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out yamlConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadConfig loads and validates the topology configuration from the YAML file at path. The path is converted to absolute; millisecond fields become time.Durations; per-role defaults are applied (queue capacity 100, service host 127.0.0.1, 50 forward retries 100ms apart, client id 1, feeding mode); the result is checked by validateConfig. Validation failures are fatal at startup by design: a malformed topology must never come up partially.
//
// Parameter path — YAML file location, from the --config flag or the CONFIG_PATH env variable.
//
// Returns: (*Config, nil) on success; (nil, error) on a read, parse or validation failure.
//
// Called from the subcommands at startup.
func LoadConfig(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("config path is required (--config flag or %s)", envConfigPath)
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		path = abs
	}
	raw, err := loadYAMLConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := &Config{
		LogFile:       strings.TrimSpace(raw.LogFile),
		TopologyDepth: raw.TopologyDepth,
		Timeouts: TimeoutConfig{
			Read:  time.Duration(raw.Timeouts.ReadMs) * time.Millisecond,
			Write: time.Duration(raw.Timeouts.WriteMs) * time.Millisecond,
			Ping:  time.Duration(raw.Timeouts.PingMs) * time.Millisecond,
			Dial:  time.Duration(raw.Timeouts.DialMs) * time.Millisecond,
		},
		Results: ResultsConfig{
			SQLiteDir:   strings.TrimSpace(raw.Results.SQLiteDir),
			RedisAddr:   strings.TrimSpace(raw.Results.RedisAddr),
			RedisPrefix: strings.TrimSpace(raw.Results.RedisPrefix),
			RunID:       strings.TrimSpace(raw.Results.RunID),
		},
	}
	if cfg.Results.RedisPrefix == "" {
		cfg.Results.RedisPrefix = defaultRedisPrefix
	}

	for _, n := range raw.Nodes {
		nc := NodeConfig{
			Name:       strings.TrimSpace(n.Name),
			Role:       domain.Role(strings.TrimSpace(n.Role)),
			Port:       n.Port,
			StatusPort: n.StatusPort,

			QueueCapacity: n.QueueCapacity,
			ServiceHost:   strings.TrimSpace(n.ServiceHost),
			ServiceCount:  n.ServiceCount,

			TargetIsSource:  n.TargetIsSource,
			ServiceTimeMean: time.Duration(n.ServiceTimeMs) * time.Millisecond,
			ServiceTimeStd:  time.Duration(n.ServiceStdMs) * time.Millisecond,
			RetryAttempts:   n.RetryAttempts,
			RetryInterval:   time.Duration(n.RetryDelayMs) * time.Millisecond,

			ClientID:        n.ClientID,
			Mode:            node.SourceMode(strings.TrimSpace(n.Mode)),
			MessageCount:    n.MessageCount,
			ArrivalDelay:    time.Duration(n.ArrivalDelayMs) * time.Millisecond,
			SampleThreshold: n.SampleThreshold,
		}
		if target := strings.TrimSpace(n.Target); target != "" {
			addr, err := domain.ParseAddress(target)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", nc.Name, err)
			}
			nc.Target = addr
		}
		applyNodeDefaults(&nc)
		cfg.Nodes = append(cfg.Nodes, nc)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyNodeDefaults fills the per-role defaults so the startup banners show
// the values the node actually runs with.
func applyNodeDefaults(nc *NodeConfig) {
	switch nc.Role {
	case domain.RoleLoadBalancer:
		if nc.QueueCapacity == 0 {
			nc.QueueCapacity = defaultQueueCapacity
		}
		if nc.ServiceHost == "" {
			nc.ServiceHost = defaultServiceHost
		}
	case domain.RoleService:
		if nc.RetryAttempts == 0 {
			nc.RetryAttempts = defaultRetryAttempts
		}
		if nc.RetryInterval == 0 {
			nc.RetryInterval = defaultRetryInterval
		}
	case domain.RoleSource:
		if nc.ClientID == 0 {
			nc.ClientID = defaultClientID
		}
		if nc.Mode == "" {
			nc.Mode = node.SourceModeFeeding
		}
	}
}

// validateConfig checks the whole topology: a positive declared depth, at
// least one node, unique names and listening ports, a known role per node
// and the per-role required fields. At most one source is allowed — the
// collector terminates the run and two sources would race on it.
//
// Returns nil when the config is usable; the first violation otherwise.
//
// Called from LoadConfig and from buildPreset.
func validateConfig(cfg *Config) error {
	if cfg.TopologyDepth < 1 {
		return fmt.Errorf("topology_depth must be a positive hop count, got %d", cfg.TopologyDepth)
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if cfg.Timeouts.Read < 0 || cfg.Timeouts.Write < 0 || cfg.Timeouts.Ping < 0 || cfg.Timeouts.Dial < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	names := make(map[string]struct{}, len(cfg.Nodes))
	ports := make(map[int]struct{}, len(cfg.Nodes))
	sources := 0
	for _, nc := range cfg.Nodes {
		if nc.Name == "" {
			return fmt.Errorf("every node needs a name")
		}
		if _, dup := names[nc.Name]; dup {
			return fmt.Errorf("node %s: duplicate name", nc.Name)
		}
		names[nc.Name] = struct{}{}
		if nc.Port < 1 || nc.Port > 65535 {
			return fmt.Errorf("node %s: port must be 1-65535, got %d", nc.Name, nc.Port)
		}
		if _, dup := ports[nc.Port]; dup {
			return fmt.Errorf("node %s: port %d is already taken", nc.Name, nc.Port)
		}
		ports[nc.Port] = struct{}{}
		if nc.StatusPort < 0 || nc.StatusPort > 65535 {
			return fmt.Errorf("node %s: status_port must be 0-65535, got %d", nc.Name, nc.StatusPort)
		}

		switch nc.Role {
		case domain.RoleLoadBalancer:
			if err := validateLoadBalancer(nc); err != nil {
				return err
			}
		case domain.RoleService:
			if err := validateService(nc); err != nil {
				return err
			}
		case domain.RoleSource:
			sources++
			if err := validateSource(nc); err != nil {
				return err
			}
		default:
			return fmt.Errorf("node %s: %w: %q (must be source|loadbalancer|service)", nc.Name, ErrUnknownRole, string(nc.Role))
		}
	}
	if sources > 1 {
		return fmt.Errorf("at most one source is allowed, got %d", sources)
	}
	return nil
}

func validateLoadBalancer(nc NodeConfig) error {
	if nc.QueueCapacity < 1 {
		return fmt.Errorf("node %s: queue_capacity must be positive, got %d", nc.Name, nc.QueueCapacity)
	}
	if nc.ServiceCount < 1 {
		return fmt.Errorf("node %s: service_count must be positive, got %d", nc.Name, nc.ServiceCount)
	}
	return nil
}

func validateService(nc NodeConfig) error {
	if nc.Target.Port == 0 {
		return fmt.Errorf("node %s: target is required for a service", nc.Name)
	}
	if nc.ServiceTimeMean < 0 || nc.ServiceTimeStd < 0 {
		return fmt.Errorf("node %s: service time mean/std must not be negative", nc.Name)
	}
	if nc.RetryAttempts < 1 {
		return fmt.Errorf("node %s: retry_attempts must be positive, got %d", nc.Name, nc.RetryAttempts)
	}
	return nil
}

func validateSource(nc NodeConfig) error {
	if nc.Target.Port == 0 {
		return fmt.Errorf("node %s: target is required for a source", nc.Name)
	}
	if nc.Mode != node.SourceModeFeeding && nc.Mode != node.SourceModeValidation {
		return fmt.Errorf("node %s: mode must be feeding|validation, got %q", nc.Name, string(nc.Mode))
	}
	if nc.MessageCount < 1 {
		return fmt.Errorf("node %s: message_count must be positive, got %d", nc.Name, nc.MessageCount)
	}
	if nc.ArrivalDelay < 0 {
		return fmt.Errorf("node %s: arrival_delay_ms must not be negative", nc.Name)
	}
	if nc.SampleThreshold < 1 {
		return fmt.Errorf("node %s: sample_threshold must be positive, got %d", nc.Name, nc.SampleThreshold)
	}
	if nc.SampleThreshold > nc.MessageCount {
		return fmt.Errorf("node %s: sample_threshold %d can never be reached with message_count %d", nc.Name, nc.SampleThreshold, nc.MessageCount)
	}
	if nc.ClientID < 1 {
		return fmt.Errorf("node %s: client_id must be positive, got %d", nc.Name, nc.ClientID)
	}
	return nil
}

// FindNode returns the node entry with the given name.
//
// Returns: the NodeConfig, or ErrUnknownNode (wrapped with the known names) when no entry matches.
//
// Called from the role subcommands after resolving --node / NODE_NAME.
func (c *Config) FindNode(name string) (NodeConfig, error) {
	for _, nc := range c.Nodes {
		if nc.Name == name {
			return nc, nil
		}
	}
	return NodeConfig{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownNode, name, strings.Join(c.nodeNames(), ", "))
}

// NodesByRole returns the node entries with the given role, in file order.
func (c *Config) NodesByRole(role domain.Role) []NodeConfig {
	var out []NodeConfig
	for _, nc := range c.Nodes {
		if nc.Role == role {
			out = append(out, nc)
		}
	}
	return out
}

func (c *Config) nodeNames() []string {
	out := make([]string, 0, len(c.Nodes))
	for _, nc := range c.Nodes {
		out = append(out, nc.Name)
	}
	return out
}
