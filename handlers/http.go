// Package handlers contains the http diagnostics handlers for mytestbed nodes.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"mytestbed/domain"
	"mytestbed/helpers"
	"mytestbed/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/process"
)

// HTTPServer serves one node's diagnostics API. GET /v1/status returns the
// node snapshot extended with process CPU and memory; GET /v1/results returns
// the current collector summary and exists only on the source (other nodes
// answer 404). The server is optional per node (status_port 0 disables it)
// and never affects protocol behavior.
type HTTPServer struct {
	reporter interfaces.StatusReporter
	results  func() domain.Summary
	logger   log.Logger
	echo     *echo.Echo
}

// NewHTTPServer creates the diagnostics server for one node. Panics on nil
// reporter or logger; results is nil on every node except the source.
func NewHTTPServer(reporter interfaces.StatusReporter, results func() domain.Summary, logger log.Logger) *HTTPServer {
	return &HTTPServer{
		reporter: helpers.NilPanic(reporter, "handlers.http.go: reporter is required"),
		results:  results,
		logger:   log.WithPrefix(helpers.NilPanic(logger, "handlers.http.go: logger is required"), "component", "HTTPServer"),
	}
}

// RegisterHandlers wires the diagnostics routes onto e.
func RegisterHandlers(e *echo.Echo, server *HTTPServer) {
	e.GET("/v1/status", server.Status)
	e.GET("/v1/results", server.Results)
}

// Status (GET /v1/status) returns the node's domain.NodeStatus snapshot with
// the process CPU percent and resident memory filled in. Process stats that
// cannot be read are logged and left zero; the endpoint never fails over them.
func (h *HTTPServer) Status(ectx echo.Context) error {
	st := h.reporter.Status()
	h.fillProcessStats(&st)
	return ectx.JSON(http.StatusOK, st)
}

// Results (GET /v1/results) returns the collector's current summary. Nodes
// without a collector (everything but the source) answer 404.
func (h *HTTPServer) Results(ectx echo.Context) error {
	if h.results == nil {
		return echo.NewHTTPError(http.StatusNotFound, "results are only available on the source node")
	}
	return ectx.JSON(http.StatusOK, h.results())
}

// fillProcessStats reads this process's CPU percent and RSS via gopsutil.
func (h *HTTPServer) fillProcessStats(st *domain.NodeStatus) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		level.Warn(h.logger).Log("msg", "process stats unavailable", "err", err)
		return
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		st.MemoryRSSBytes = mem.RSS
	}
}

// Start begins serving on the given port in a background goroutine. Serve
// errors other than the normal shutdown are logged, never fatal: diagnostics
// must not take a node down.
func (h *HTTPServer) Start(port int) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	RegisterHandlers(e, h)
	h.echo = e

	addr := fmt.Sprintf(":%d", port)
	level.Info(h.logger).Log("msg", "diagnostics listening", "addr", addr)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			level.Warn(h.logger).Log("msg", "diagnostics server error", "err", err)
		}
	}()
}

// Shutdown stops the server gracefully. A no-op before Start.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	if h.echo == nil {
		return nil
	}
	return h.echo.Shutdown(ctx)
}
