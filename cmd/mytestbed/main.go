// Package main is the entry point for the mytestbed response-time testbed. It
// loads the topology configuration (env + YAML, LoadConfig), builds the
// selected nodes over their TCP transports (buildTopology: connection pool,
// transport, loadbalancer/service/source per role, statistics collector and
// result sinks for the source, diagnostics server per node), starts them in
// dependency order and runs until the source completes its sample collection
// or SIGINT/SIGTERM arrives, then stops everything with a 5s grace timer.
// The role subcommands (source, loadbalancer, service) run one node per
// process; run starts the whole topology in a single process over localhost
// TCP, either from --config or from a registered --preset.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"mytestbed/domain"
	"mytestbed/node"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// version is overridden by the release build.
var version = "dev"

const stopGraceTimeout = 5 * time.Second

var (
	flagConfig string
	flagNode   string
	flagPreset string
)

var rootCmd = &cobra.Command{
	Use:   "mytestbed",
	Short: "A tiered response-time testbed over TCP.",
	Long: `mytestbed measures the response-time behavior of a tiered topology:
a source emits timestamped messages through load-balancing tiers into pools
of worker services, every hop appends its timing to the message, and the
source decomposes the completed round trips into per-hop latency averages.`,
	SilenceUsage: true,
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Run one source node from the config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelectedNode(domain.RoleSource)
	},
}

var loadbalancerCmd = &cobra.Command{
	Use:   "loadbalancer",
	Short: "Run one loadbalancer node from the config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelectedNode(domain.RoleLoadBalancer)
	},
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run one service node from the config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelectedNode(domain.RoleService)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every node of the topology in this process over localhost TCP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveTopology()
		if err != nil {
			return err
		}
		return runTopology(cfg, "")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mytestbed " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the topology YAML (falls back to "+envConfigPath+")")
	for _, c := range []*cobra.Command{sourceCmd, loadbalancerCmd, serviceCmd} {
		c.Flags().StringVar(&flagNode, "node", "", "node name from the config (falls back to "+envNodeName+")")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringVar(&flagPreset, "preset", "", "run a built-in topology instead of --config: "+strings.Join(presetNames(), ", "))
	rootCmd.AddCommand(runCmd, versionCmd)
}

// main loads the optional .env file and dispatches to the subcommands. Exits
// through atexit so the results recorder's exit hook always flushes.
//
// Called when the binary is started.
func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// runSelectedNode runs a single node of the given role: the one named by
// --node / NODE_NAME, or the config's only node of that role when the flag
// is omitted.
//
// Called from the source, loadbalancer and service subcommands.
func runSelectedNode(role domain.Role) error {
	cfg, err := LoadConfig(resolveConfigPath())
	if err != nil {
		return err
	}
	name, err := resolveNodeName(cfg, role)
	if err != nil {
		return err
	}
	nc, err := cfg.FindNode(name)
	if err != nil {
		return err
	}
	if nc.Role != role {
		return fmt.Errorf("node %q has role %s, not %s", name, nc.Role, role)
	}
	return runTopology(cfg, name)
}

// runTopology builds and starts the selected nodes, waits for completion or
// a shutdown signal, then stops everything under the grace timer. The
// source's validation mode exits cleanly here: the mode is declared but not
// implemented, and that must read as a decision, not a crash.
//
// Called from every run path (role subcommands and run).
func runTopology(cfg *Config, only string) error {
	logger, closeLog, err := buildLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	topo, err := buildTopology(cfg, only, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to build topology", "err", err)
		return err
	}
	if err := topo.start(logger); err != nil {
		topo.stop(logger)
		if errors.Is(err, node.ErrValidationNotImplemented) {
			level.Info(logger).Log("msg", "validation mode is not implemented, exiting")
			return nil
		}
		level.Error(logger).Log("msg", "failed to start topology", "err", err)
		return err
	}

	awaitShutdown(topo, logger)
	gracefulStop(topo, logger)
	return nil
}

// awaitShutdown blocks until SIGINT/SIGTERM or, when this process hosts the
// source, until the source reports its sample collection complete.
func awaitShutdown(topo *topology, logger log.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	if topo.source != nil {
		select {
		case <-quit:
			level.Info(logger).Log("msg", "shutdown signal received")
		case <-topo.source.Done():
		}
		return
	}
	<-quit
	level.Info(logger).Log("msg", "shutdown signal received")
}

// gracefulStop stops the topology, forcing the issue after the grace timer:
// a wedged node must not keep the process alive forever.
func gracefulStop(topo *topology, logger log.Logger) {
	stopped := make(chan struct{})
	go func() {
		topo.stop(logger)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopGraceTimeout):
		level.Error(logger).Log("msg", "graceful stop timed out")
	}
}

// buildLogger builds the process logger: logfmt to stderr, tee'd into the
// configured log file when one is set. The returned cleanup closes the file
// exactly once; it is a no-op without a file.
func buildLogger(logFile string) (log.Logger, func(), error) {
	var w io.Writer = os.Stderr
	cleanup := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		var once sync.Once
		cleanup = func() { once.Do(func() { _ = f.Close() }) }
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.WithPrefix(logger, "ts", log.DefaultTimestampUTC)
	logger = log.WithPrefix(logger, "caller", log.DefaultCaller)
	return logger, cleanup, nil
}

// resolveConfigPath returns the --config flag when set, else CONFIG_PATH.
func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return strings.TrimSpace(os.Getenv(envConfigPath))
}

// resolveTopology returns the preset topology when --preset is set, else the
// loaded config file.
func resolveTopology() (*Config, error) {
	if flagPreset != "" {
		return buildPreset(flagPreset)
	}
	return LoadConfig(resolveConfigPath())
}

// resolveNodeName returns --node / NODE_NAME, defaulting to the config's
// only node of the command's role so single-node configs need no flag.
func resolveNodeName(cfg *Config, role domain.Role) (string, error) {
	if flagNode != "" {
		return flagNode, nil
	}
	if name := strings.TrimSpace(os.Getenv(envNodeName)); name != "" {
		return name, nil
	}
	matching := cfg.NodesByRole(role)
	if len(matching) == 1 {
		return matching[0].Name, nil
	}
	return "", fmt.Errorf("--node is required: the config has %d %s nodes", len(matching), role)
}
