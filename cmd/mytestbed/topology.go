package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mytestbed/adapters/myredis"
	"mytestbed/adapters/record"
	"mytestbed/domain"
	"mytestbed/handlers"
	"mytestbed/interfaces"
	"mytestbed/node"
	"mytestbed/stats"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rs/xid"
)

const (
	defaultDialTimeout    = 2 * time.Second
	statusShutdownTimeout = 2 * time.Second
)

// builtNode couples one constructed node with its lifecycle hooks and its
// optional diagnostics server.
type builtNode struct {
	name       string
	role       domain.Role
	start      func() error
	stop       func()
	status     *handlers.HTTPServer
	statusPort int
	started    bool
}

// topology is the set of nodes this process runs plus the result sinks they
// share. The run subcommand builds every node of the config; the role
// subcommands build exactly one.
type topology struct {
	nodes  []builtNode
	sinks  []interfaces.ResultSink
	source *node.Source
}

// buildTopology constructs the selected nodes without starting anything.
// only narrows the config to a single node by name (role subcommands);
// empty only means every node (run subcommand). Result sinks are created
// only when the selection includes the source — they are fed by nobody else.
//
// Returns: the assembled topology, or the first construction error (an
// unusable results directory, an unknown node name).
//
// Called from the subcommands after LoadConfig.
func buildTopology(cfg *Config, only string, logger log.Logger) (*topology, error) {
	selected := cfg.Nodes
	if only != "" {
		nc, err := cfg.FindNode(only)
		if err != nil {
			return nil, err
		}
		selected = []NodeConfig{nc}
	}

	topo := &topology{}
	clock := node.NewTimeProvider(time.Now)

	for _, nc := range selected {
		if nc.Role == domain.RoleSource {
			sinks, err := buildResultSinks(cfg, logger)
			if err != nil {
				return nil, err
			}
			topo.sinks = sinks
			break
		}
	}

	for _, nc := range selected {
		bn, src, err := buildNode(cfg, nc, clock, topo.sinks, logger)
		if err != nil {
			return nil, err
		}
		topo.nodes = append(topo.nodes, bn)
		if src != nil {
			topo.source = src
		}
	}
	return topo, nil
}

// buildNode constructs one node with its transport and diagnostics server.
// The third return value is non-nil only for the source.
func buildNode(cfg *Config, nc NodeConfig, clock interfaces.TimeProvider, sinks []interfaces.ResultSink, logger log.Logger) (builtNode, *node.Source, error) {
	tr := newNodeTransport(cfg, nc, logger)
	bn := builtNode{name: nc.Name, role: nc.Role, statusPort: nc.StatusPort}
	statusLogger := log.With(logger, "node", nc.Name)

	switch nc.Role {
	case domain.RoleLoadBalancer:
		b := node.NewLoadBalancer(node.LoadBalancerConfig{
			Name:          nc.Name,
			LocalPort:     nc.Port,
			QueueCapacity: nc.QueueCapacity,
			ServiceHost:   nc.ServiceHost,
			ServiceCount:  nc.ServiceCount,
		}, tr, clock, logger)
		bn.start, bn.stop = b.Start, b.Stop
		if nc.StatusPort > 0 {
			bn.status = handlers.NewHTTPServer(b, nil, statusLogger)
		}
		return bn, nil, nil

	case domain.RoleService:
		s := node.NewService(node.ServiceConfig{
			Name:            nc.Name,
			LocalPort:       nc.Port,
			Target:          nc.Target,
			TargetIsSource:  nc.TargetIsSource,
			ServiceTimeMean: nc.ServiceTimeMean,
			ServiceTimeStd:  nc.ServiceTimeStd,
			RetryAttempts:   nc.RetryAttempts,
			RetryInterval:   nc.RetryInterval,
		}, tr, clock, logger)
		bn.start, bn.stop = s.Start, s.Stop
		if nc.StatusPort > 0 {
			bn.status = handlers.NewHTTPServer(s, nil, statusLogger)
		}
		return bn, nil, nil

	case domain.RoleSource:
		collector := stats.NewCollector(cfg.TopologyDepth, nc.SampleThreshold, log.With(logger, "node", nc.Name))
		arrivals := node.NewFixedIntervalArrivals(nc.MessageCount, nc.ArrivalDelay)
		src := node.NewSource(node.SourceConfig{
			Name:         nc.Name,
			LocalPort:    nc.Port,
			Target:       nc.Target,
			ClientID:     nc.ClientID,
			Mode:         nc.Mode,
			MessageCount: nc.MessageCount,
			ArrivalDelay: nc.ArrivalDelay,
		}, tr, clock, arrivals, collector, sinks, logger)
		bn.start, bn.stop = src.Start, src.Stop
		if nc.StatusPort > 0 {
			bn.status = handlers.NewHTTPServer(src, collector.Summary, statusLogger)
		}
		return bn, src, nil

	default:
		return builtNode{}, nil, fmt.Errorf("node %s: %w: %q", nc.Name, ErrUnknownRole, string(nc.Role))
	}
}

// newNodeTransport builds one node's connection pool and transport from the
// shared timeout section.
func newNodeTransport(cfg *Config, nc NodeConfig, logger log.Logger) *node.Transport {
	nodeLogger := log.With(logger, "node", nc.Name)
	dialTimeout := cfg.Timeouts.Dial
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	pool := node.NewConnectionPool(node.DialTCP(dialTimeout), nodeLogger)
	return node.NewTransport(node.TransportConfig{
		LocalPort:    nc.Port,
		ReadTimeout:  cfg.Timeouts.Read,
		WriteTimeout: cfg.Timeouts.Write,
		PingTimeout:  cfg.Timeouts.Ping,
	}, pool, nodeLogger)
}

// buildResultSinks creates the configured sinks. The run database is fatal
// when unusable (an existing file must never be overwritten); the redis
// publisher is optional and a failed connection only disables it. Both sinks
// share one run id so their rows correlate.
func buildResultSinks(cfg *Config, logger log.Logger) ([]interfaces.ResultSink, error) {
	runID := cfg.Results.RunID
	if runID == "" {
		runID = xid.New().String()
	}

	var sinks []interfaces.ResultSink
	if cfg.Results.SQLiteDir != "" {
		rec, err := record.NewRecorder(record.Config{
			Dir:   cfg.Results.SQLiteDir,
			RunID: runID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("results recorder: %w", err)
		}
		sinks = append(sinks, rec)
	}
	if cfg.Results.RedisAddr != "" {
		client, err := myredis.NewRedisUniversalClient(cfg.Results.RedisAddr)
		if err != nil {
			level.Warn(logger).Log("msg", "redis publisher disabled", "addr", cfg.Results.RedisAddr, "err", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			pingErr := client.Ping(ctx).Err()
			cancel()
			if pingErr != nil {
				level.Warn(logger).Log("msg", "redis publisher disabled", "addr", cfg.Results.RedisAddr, "err", pingErr)
				_ = client.Close()
			} else {
				sinks = append(sinks, myredis.NewPublisher(client, cfg.Results.RedisPrefix+":"+runID))
			}
		}
	}
	if len(sinks) > 0 {
		level.Info(logger).Log("msg", "results enabled", "run_id", runID, "sinks", len(sinks))
	}
	return sinks, nil
}

// start brings the topology up: services first, then balancers, then the
// source, so every probe target is already listening when emission begins.
// A node that cannot bind is logged and skipped — the rest of the system
// keeps running and upstream sends to it simply keep failing. The one
// exception is the source's validation mode, which must abort the whole
// command cleanly.
func (t *topology) start(logger log.Logger) error {
	started := 0
	for _, role := range []domain.Role{domain.RoleService, domain.RoleLoadBalancer, domain.RoleSource} {
		for i := range t.nodes {
			bn := &t.nodes[i]
			if bn.role != role {
				continue
			}
			if err := bn.start(); err != nil {
				if errors.Is(err, node.ErrValidationNotImplemented) {
					return err
				}
				level.Error(logger).Log("msg", "node failed to start, continuing without it", "node", bn.name, "err", err)
				continue
			}
			bn.started = true
			if bn.status != nil {
				bn.status.Start(bn.statusPort)
			}
			started++
		}
	}
	if started == 0 {
		return errors.New("no node came up")
	}
	return nil
}

// stop tears the topology down in reverse start order (source, balancers,
// services), shuts the diagnostics servers and closes the sinks. Safe on a
// partially started topology.
func (t *topology) stop(logger log.Logger) {
	for _, role := range []domain.Role{domain.RoleSource, domain.RoleLoadBalancer, domain.RoleService} {
		for i := range t.nodes {
			bn := &t.nodes[i]
			if bn.role != role || !bn.started {
				continue
			}
			if bn.status != nil {
				ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
				if err := bn.status.Shutdown(ctx); err != nil {
					level.Warn(logger).Log("msg", "diagnostics shutdown failed", "node", bn.name, "err", err)
				}
				cancel()
			}
			bn.stop()
			bn.started = false
		}
	}
	for _, sink := range t.sinks {
		if err := sink.Close(); err != nil {
			level.Warn(logger).Log("msg", "result sink close failed", "err", err)
		}
	}
}
