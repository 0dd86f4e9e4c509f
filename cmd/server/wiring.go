package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"landreg/internal/authz"
	certsvc "landreg/internal/certificate/service"
	certstore "landreg/internal/certificate/store"
	httpapi "landreg/internal/http"
	jwttoken "landreg/internal/jwt_token"
	"landreg/internal/ledger"
	"landreg/internal/platform/config"
	"landreg/internal/platform/kafka"
	"landreg/internal/platform/kafka/consumer"
	"landreg/internal/platform/kafka/outbox"
	"landreg/internal/platform/lock"
	"landreg/internal/platform/postgres"
	"landreg/internal/platform/redis"
	"landreg/internal/platform/uid"
	recmetrics "landreg/internal/recording/metrics"
	recm "landreg/internal/recording/models"
	recsvc "landreg/internal/recording/service"
	recstore "landreg/internal/recording/store"
	ressvc "landreg/internal/resource/service"
	resstore "landreg/internal/resource/store"
	"landreg/internal/security"
	"landreg/internal/tract"
	txsvc "landreg/internal/transaction/service"
	txstore "landreg/internal/transaction/store"
	"landreg/internal/workflow"
	wfhandler "landreg/internal/workflow/handler"
	wfstore "landreg/internal/workflow/store"
	"landreg/pkg/platform/audit"
	auditconsumer "landreg/pkg/platform/audit/consumer"
	"landreg/pkg/platform/audit/publishers/compliance"
	"landreg/pkg/platform/audit/publishers/ops"
	auditmemory "landreg/pkg/platform/audit/store/memory"
	auditpostgres "landreg/pkg/platform/audit/store/postgres"
	txcontext "landreg/pkg/platform/tx"
)

type recordStore interface {
	recsvc.Store
	tract.ActReader
	certsvc.PartyIndex
}

// stores groups one persistence backend for every aggregate.
type stores struct {
	records      recordStore
	resources    ressvc.Store
	transactions txsvc.Store
	tasks        workflow.TaskStore
	certificates certsvc.Store
	audit        audit.Store
	tx           txcontext.Runner
}

// app is the assembled process: the services, the router and the
// background workers that run next to the HTTP server.
type app struct {
	Resources    *ressvc.Service
	Transactions *txsvc.Service
	Recording    *recsvc.Service
	Certificates *certsvc.Service
	Workflow     *workflow.Engine

	router  http.Handler
	workers []func(context.Context) error
	closers []func()
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	var checks []httpapi.Option

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	var st stores
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		checks = append(checks, httpapi.WithHealthCheck("postgres", db.PingContext))
	}

	catalog, err := recm.LoadCatalog(nil)
	if err != nil {
		return nil, fmt.Errorf("load act types: %w", err)
	}
	if db != nil {
		st = postgresStores(db, catalog)
	} else {
		st = memoryStores()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	var locker lock.Locker
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks = append(checks, httpapi.WithHealthCheck("redis", redisClient.Health))
		locker = lock.NewRedis(redisClient.Client, cfg.Redis.LockTTL)
	} else {
		log.Info("REDIS_URL not set, using in-process locks")
		locker = lock.NewSharded()
	}

	publisher := compliance.New(st.audit, compliance.WithLogger(log), compliance.WithMetrics(compliance.NewMetrics()))
	tracker := ops.New(st.audit, ops.WithLogger(log), ops.WithMetrics(ops.NewMetrics()))
	a.closers = append(a.closers, tracker.Close)

	roles, err := authz.LoadStaticRoles(cfg.Registry.RolesFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	secCfg := security.Config{
		ESignEnabled:     cfg.Security.ESignEnabled,
		SystemCredential: cfg.Security.SystemCredential,
		HashSalt:         cfg.Security.HashSalt,
	}
	signer, err := security.NewHMACSigner(cfg.Security.SystemCredential)
	if err != nil {
		a.Close()
		return nil, err
	}
	sealer := security.NewSealer(secCfg, signer)
	validator := security.NewValidator(secCfg, roles)

	policy, err := tract.ParsePrelationPolicy(cfg.Registry.PrelationPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	engine := tract.New(st.records, st.resources, catalog, tract.Config{PrelationPolicy: policy},
		tract.WithLogger(log), tract.WithMetrics(tract.NewMetrics()), tract.WithAuditEmitter(publisher))

	baseSalary, err := decimal.NewFromString(cfg.Registry.BaseSalaryValue)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid BASE_SALARY_VALUE: %w", err)
	}
	tariffs, err := ledger.LoadTariffs(nil)
	if err != nil {
		a.Close()
		return nil, err
	}
	calculator := ledger.NewCalculator(ledger.Config{BaseSalaryValue: baseSalary}, tariffs)

	cases, err := workflow.LoadCaseTypes(nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	uids := uid.New()
	a.Resources = ressvc.New(st.resources, uids, ressvc.WithLogger(log))
	a.Transactions = txsvc.New(st.transactions, uids, calculator,
		txsvc.WithLogger(log), txsvc.WithLocker(locker), txsvc.WithTxRunner(st.tx),
		txsvc.WithAuditPublisher(publisher), txsvc.WithOpsTracker(tracker))
	a.Recording = recsvc.New(recsvc.Deps{
		Store:     st.records,
		Resources: st.resources,
		Catalog:   catalog,
		Tract:     engine,
		Sealer:    sealer,
		Validator: validator,
		UIDs:      uids,
		Locker:    locker,
		Tx:        st.tx,
	}, recsvc.WithLogger(log), recsvc.WithMetrics(recmetrics.New()),
		recsvc.WithAuditPublisher(publisher), recsvc.WithOpsTracker(tracker))
	a.Certificates = certsvc.New(certsvc.Deps{
		Store:        st.certificates,
		Transactions: st.transactions,
		Resources:    st.resources,
		Text:         certsvc.NewTextBuilder(engine, st.records, st.resources),
		Sealer:       sealer,
		Validator:    validator,
		UIDs:         uids,
		Locker:       locker,
		Tx:           st.tx,
	}, certsvc.WithLogger(log), certsvc.WithAuditPublisher(publisher), certsvc.WithOpsTracker(tracker))
	a.Workflow = workflow.New(st.transactions, st.tasks, workflow.NewRules(cases), roles,
		workflow.WithLogger(log), workflow.WithMetrics(workflow.NewMetrics()),
		workflow.WithLocker(locker), workflow.WithTxRunner(st.tx), workflow.WithOpsTracker(tracker))

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	a.router = httpapi.NewRouter(log, []httpapi.Registrar{
		wfhandler.New(a.Workflow, tokens, log),
	}, checks...)

	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		if err := a.startAuditPipeline(ctx, cfg.Kafka, db, log); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.Database, log *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return nil, nil
	}
	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func postgresStores(db *sql.DB, catalog *recm.Catalog) stores {
	return stores{
		records:      recstore.NewPostgres(db, catalog),
		resources:    resstore.NewPostgres(db),
		transactions: txstore.NewPostgres(db),
		tasks:        wfstore.NewPostgres(db),
		certificates: certstore.NewPostgres(db),
		audit:        auditpostgres.New(db),
		tx:           txcontext.NewSQLRunner(db),
	}
}

func memoryStores() stores {
	return stores{
		records:      recstore.NewInMemory(),
		resources:    resstore.NewInMemory(),
		transactions: txstore.NewInMemory(),
		tasks:        wfstore.NewInMemory(),
		certificates: certstore.NewInMemory(),
		audit:        auditmemory.NewInMemoryStore(),
		tx:           txcontext.DirectRunner{},
	}
}

// startAuditPipeline relays the outbox to Kafka and materializes the
// relayed events into audit_events.
func (a *app) startAuditPipeline(ctx context.Context, cfg config.Kafka, db *sql.DB, log *slog.Logger) error {
	kcfg := kafka.Config{Brokers: cfg.Brokers, ClientID: cfg.ClientID}
	producer, err := kafka.NewProducer(ctx, kcfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, producer.Close)

	materializer := auditconsumer.NewMaterializer(auditpostgres.New(db), log)
	router := auditconsumer.NewRouter(cfg.TopicPrefix, log)
	for _, category := range []audit.EventCategory{audit.CategoryCompliance, audit.CategorySecurity, audit.CategoryOperations} {
		router.Register(category, materializer)
	}
	topics := router.Topics()
	if err := producer.EnsureTopics(ctx, kcfg, topics...); err != nil {
		return err
	}

	relay := outbox.New(db, producer, cfg.TopicPrefix, outbox.WithInterval(cfg.RelayInterval), outbox.WithLogger(log))
	c, err := consumer.New(consumer.Config{Brokers: cfg.Brokers, GroupID: cfg.GroupID, Topics: topics}, router, log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, c.Close)
	a.workers = append(a.workers, relay.Run, c.Run)
	return nil
}
