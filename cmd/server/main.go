package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"verdant/internal/access"
	accessmetrics "verdant/internal/access/metrics"
	"verdant/internal/audit"
	auditmetrics "verdant/internal/audit/metrics"
	kafkasink "verdant/internal/audit/sink/kafka"
	"verdant/internal/breakglass"
	"verdant/internal/breakglass/lockout"
	bgmetrics "verdant/internal/breakglass/metrics"
	"verdant/internal/jwttoken"
	"verdant/internal/lineage"
	"verdant/internal/platform/config"
	"verdant/internal/platform/httpserver"
	"verdant/internal/platform/logger"
	platformredis "verdant/internal/platform/redis"
	"verdant/internal/report"
	reportmetrics "verdant/internal/report/metrics"
	httptransport "verdant/internal/transport/http"
	"verdant/internal/workflow"
	wfmetrics "verdant/internal/workflow/metrics"
	id "verdant/pkg/domain"
)

// lazyResolver breaks the construction cycle between the permission engine
// and the report service: the engine needs section→period lookups, the
// report service needs the engine for permission checks.
type lazyResolver struct {
	svc *report.Service
}

func (r *lazyResolver) SectionPeriod(ctx context.Context, sectionID id.SectionID) (id.PeriodID, error) {
	return r.svc.SectionPeriod(ctx, sectionID)
}

// main wires stores, services, and the HTTP router, then runs the server and
// the audit mirror worker until a shutdown signal arrives. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit ledger and break-glass sessions. The in-memory stores are the
	// default; postgres, when configured, holds the durable copies.
	var auditStore audit.Store = audit.NewInMemoryStore()
	var sessionStore breakglass.SessionStore = breakglass.NewInMemorySessionStore()
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewPostgresStore(db)
		sessionStore = breakglass.NewPostgresSessionStore(db)
	}

	auditMetrics := auditmetrics.New()
	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	}

	var mirrorInbox chan audit.Entry
	var mirror *kafkasink.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect kafka audit mirror", "error", err)
			os.Exit(1)
		}
		mirror = sink
		defer mirror.Close()
		mirrorInbox = make(chan audit.Entry, 1024)
		auditOpts = append(auditOpts, audit.WithMirror(mirrorInbox))
	}

	auditLog := audit.NewLog(auditStore, auditOpts...)
	differ := audit.NewDiffer()

	// Access control.
	roles := access.NewInMemoryRoleStore()
	if err := access.SeedBuiltInRoles(ctx, roles); err != nil {
		log.Error("failed to seed built-in roles", "error", err)
		os.Exit(1)
	}
	users := access.NewInMemoryUserStore()
	grants := access.NewInMemoryGrantStore()

	resolver := &lazyResolver{}
	engine, err := access.New(roles, users, grants, auditLog, differ,
		access.WithLogger(log),
		access.WithMetrics(accessmetrics.New()),
		access.WithSectionResolver(resolver),
	)
	if err != nil {
		log.Error("failed to build permission engine", "error", err)
		os.Exit(1)
	}

	// Break-glass. A shared redis lockout store keeps activation throttling
	// consistent across replicas; single-process deployments fall back to
	// the in-memory one.
	var lockouts lockout.Store = lockout.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lockouts = lockout.NewRedisStore(redisClient.Client)
	}

	controller, err := breakglass.New(sessionStore, engine, auditLog, differ,
		breakglass.WithLogger(log),
		breakglass.WithMetrics(bgmetrics.New()),
		breakglass.WithLockouts(lockouts),
	)
	if err != nil {
		log.Error("failed to build break-glass controller", "error", err)
		os.Exit(1)
	}

	// Report content and workflow.
	periods := report.NewInMemoryPeriodStore()
	sections := report.NewInMemorySectionStore()
	versions := report.NewInMemoryVersionStore()
	dataPoints := report.NewInMemoryDataPointStore()

	machine, err := workflow.New(sections, versions, dataPoints, auditLog, differ,
		workflow.WithLogger(log),
		workflow.WithMetrics(wfmetrics.New()),
		workflow.WithSessionTagger(controller),
	)
	if err != nil {
		log.Error("failed to build workflow machine", "error", err)
		os.Exit(1)
	}

	reportSvc, err := report.New(periods, sections, versions, dataPoints, engine, auditLog, differ,
		report.WithLogger(log),
		report.WithMetrics(reportmetrics.New()),
		report.WithEditGate(machine),
		report.WithSessionTagger(controller),
	)
	if err != nil {
		log.Error("failed to build report service", "error", err)
		os.Exit(1)
	}
	resolver.svc = reportSvc

	tracker, err := lineage.New(dataPoints, periods, lineage.WithLogger(log))
	if err != nil {
		log.Error("failed to build lineage tracker", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:     log,
		Validator:  tokens,
		Audit:      httptransport.NewAuditHandler(auditLog, log),
		Access:     httptransport.NewAccessHandler(engine, log),
		BreakGlass: httptransport.NewBreakGlassHandler(controller, log),
		Report:     httptransport.NewReportHandler(reportSvc, log),
		Workflow:   httptransport.NewWorkflowHandler(machine, log),
		Lineage:    httptransport.NewLineageHandler(tracker, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting verdant", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if mirror != nil {
		worker := audit.NewWorker(mirror, mirrorInbox, log, auditMetrics)
		group.Go(func() error {
			return worker.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
