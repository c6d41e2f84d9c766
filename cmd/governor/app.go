package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/assemblage-lab/governor/pkg/config"
	"github.com/assemblage-lab/governor/pkg/escalation"
	"github.com/assemblage-lab/governor/pkg/governance"
	"github.com/assemblage-lab/governor/pkg/llm"
	"github.com/assemblage-lab/governor/pkg/observability"
	"github.com/assemblage-lab/governor/pkg/store/ledger"
)

// app holds the process-wide dependencies a command needs. Commands open
// it lazily so `governor rules` never touches the ledger database.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observability.Provider

	charter     *governance.Constitution
	ledger      ledger.Ledger
	closeLedger func() error
}

func loadApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := flags.GetString("db"); db != "" {
		cfg.DatabaseURL = db
	}
	if id, _ := flags.GetString("document-id"); id != "" {
		cfg.DocumentID = id
	}
	if lvl, _ := flags.GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	telemetry, err := observability.New(cmd.Context(), &observability.Config{
		ServiceName:    "governor",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.Telemetry.Endpoint != "",
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	return &app{cfg: cfg, logger: logger, telemetry: telemetry}, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openLedger connects the configured action ledger.
func (a *app) openLedger(ctx context.Context) (ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	l, closeFn, err := ledger.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.ledger, a.closeLedger = l, closeFn
	return l, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.closeLedger != nil {
		errs = append(errs, a.closeLedger())
	}
	if op, err := a.telemetry.SLO(observability.OperationOracle); err == nil && op.ObservationCount > 0 {
		a.logger.DebugContext(ctx, "oracle slo",
			"p99_ms", op.CurrentP99Ms,
			"success_rate", op.CurrentSuccess,
			"burn_rate", op.BurnRate,
		)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	errs = append(errs, a.telemetry.Shutdown(shutdownCtx))
	return errors.Join(errs...)
}

// constitution loads the configured constitution, or the default one.
func (a *app) constitution() (*governance.Constitution, error) {
	if a.charter != nil {
		return a.charter, nil
	}
	if a.cfg.ConstitutionPath == "" {
		a.charter = governance.DefaultConstitution()
		return a.charter, nil
	}
	c, err := governance.LoadConstitution(a.cfg.ConstitutionPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("constitution loaded", "path", a.cfg.ConstitutionPath, "version", c.Version(), "rules", c.Len())
	a.charter = c
	return c, nil
}

// evaluator wires the pipeline. offline disables the oracle regardless of
// configuration.
func (a *app) evaluator(offline bool) (*governance.Evaluator, error) {
	c, err := a.constitution()
	if err != nil {
		return nil, err
	}
	engine := governance.NewRuleEngine(c, a.logger)

	var oracle governance.EscalationOracle
	if !offline && a.cfg.OracleEnabled() {
		oracle, err = a.oracle()
		if err != nil {
			return nil, err
		}
	}
	reconciler := governance.NewHybridReconciler(oracle,
		governance.WithOracleTimeout(a.cfg.LLM.Timeout),
		governance.WithReconcilerLogger(a.logger),
		governance.WithReconcilerTelemetry(a.telemetry),
	)
	return governance.NewEvaluator(engine, reconciler, a.telemetry), nil
}

// oracle builds the Pattern Sentinel chain: model client, optional smart
// model routing, rate limiting, and an optional Redis opinion cache.
func (a *app) oracle() (governance.EscalationOracle, error) {
	lc := a.cfg.LLM
	opts := []llm.OpenAIOption{llm.WithBaseURL(lc.ServiceURL)}
	if lc.TokenSecret != "" {
		signer, err := llm.NewServiceTokenSigner([]byte(lc.TokenSecret), lc.TokenIssuer, lc.TokenAudience)
		if err != nil {
			return nil, fmt.Errorf("llm token: %w", err)
		}
		opts = append(opts, llm.WithServiceToken(signer))
	}

	var client llm.Client = llm.NewOpenAIClient(lc.APIKey, lc.Model, opts...)
	if lc.SmartModel != "" && lc.SmartModel != lc.Model {
		client = llm.NewRouter(client, llm.NewOpenAIClient(lc.APIKey, lc.SmartModel, opts...), llm.DefaultRouteThreshold)
	}

	sentinelOpts := []llm.SentinelOption{
		llm.WithRateLimit(rate.Limit(lc.RateLimit), lc.Burst),
		llm.WithSentinelLogger(a.logger),
	}
	if lc.FailClosed {
		sentinelOpts = append(sentinelOpts, llm.WithFailClosed())
	}
	var oracle governance.EscalationOracle = llm.NewSentinel(client, sentinelOpts...)

	if rc := a.cfg.Redis; rc.Addr != "" {
		cache := llm.DialRedisOpinionCache(rc.Addr, rc.Password, rc.DB)
		oracle = llm.NewCachedOracle(oracle, cache, rc.TTL, lc.Model+"|"+lc.SmartModel, a.logger)
	}
	a.logger.Debug("pattern sentinel enabled", "model", lc.Model, "smart_model", lc.SmartModel, "cache", a.cfg.Redis.Addr != "")
	return oracle, nil
}

// store creates a state store bound to the document's ledger history.
func (a *app) store(ctx context.Context, offline bool) (*escalation.Store, error) {
	ev, err := a.evaluator(offline)
	if err != nil {
		return nil, err
	}
	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	return escalation.NewStore(ev,
		escalation.WithLedger(ledger.ActionLog{Ledger: l}, a.cfg.DocumentID),
		escalation.WithLogger(a.logger),
	), nil
}

// withApp loads the app, runs fn and releases resources.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	runErr := fn(ctx, a)
	if err := a.Close(ctx); err != nil {
		a.logger.WarnContext(ctx, "shutdown", "error", err)
	}
	return runErr
}
