// Package gateway provides the HTTP surface of the daemon: health and
// Prometheus endpoints, plus an authenticated admin API to trigger expire
// requests and inspect the job queue. It binds to loopback by default and
// follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/cron"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/metrics"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Services resolved from the AppContext at Start. All are optional.
const (
	ServiceStoreHealth = "store.health"
	ServiceQueue       = "queue.store"
	ServiceTrigger     = "expire.trigger"
	ServiceScheduler   = "cron.scheduler"
	ServiceGatherer    = "metrics.gatherer"
	ServiceHTTPMetrics = "metrics.http"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueReader is the read side of the job queue.
type QueueReader interface {
	Pending(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]queue.Entry, error)
}

// Enqueuer accepts top-level expire requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, req expire.Request) (queue.Entry, error)
}

// JobLister reports scheduled jobs.
type JobLister interface {
	Status() []cron.JobStatus
}

// Gateway is the HTTP gateway module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	store     Pinger
	queue     QueueReader
	trigger   Enqueuer
	scheduler JobLister
	gatherer  prometheus.Gatherer
	httpStats *metrics.HTTPMetrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}

	ctx.RegisterService("gateway.metrics", g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds optional collaborators. Missing services degrade
// the matching endpoints instead of failing startup.
func (g *Gateway) resolveServices() {
	if g.appCtx == nil {
		return
	}
	if svc, ok := core.ServiceAs[Pinger](g.appCtx, ServiceStoreHealth); ok {
		g.store = svc
	}
	if svc, ok := core.ServiceAs[QueueReader](g.appCtx, ServiceQueue); ok {
		g.queue = svc
	}
	if svc, ok := core.ServiceAs[Enqueuer](g.appCtx, ServiceTrigger); ok {
		g.trigger = svc
	}
	if svc, ok := core.ServiceAs[JobLister](g.appCtx, ServiceScheduler); ok {
		g.scheduler = svc
	}
	if svc, ok := core.ServiceAs[prometheus.Gatherer](g.appCtx, ServiceGatherer); ok {
		g.gatherer = svc
	}
	if svc, ok := core.ServiceAs[*metrics.HTTPMetrics](g.appCtx, ServiceHTTPMetrics); ok {
		g.httpStats = svc
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
