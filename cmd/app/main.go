// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/config"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	aiAdapters "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/adapters/ai"
	payAdapters "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/adapters/payment"
	tele "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/adapters/telegram"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/api"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/api/apiv1"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/db/memory"
	pg "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/db/postgres"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/i18n"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/logging"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/prompts"
	red "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/redis"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/sched"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/worker"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

// ledger groups the storage ports so Postgres and the in-memory store are interchangeable.
type ledger struct {
	payments repository.PaymentRepository
	grants   repository.AccessGrantRepository
	limits   repository.RateLimitRepository
	audit    repository.AuditRepository
	tm       repository.TransactionManager
	ready    api.Pinger // nil for the in-memory ledger
	close    func()
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory ledger and fake payments when not configured")
	mintFor := flag.Int64("mint-admin-token", 0, "print an admin API token for this Telegram id and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if *mintFor != 0 {
		if err := mintToken(cfg, *mintFor); err != nil {
			logger.Fatal().Err(err).Msg("mint admin token")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("app stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func mintToken(cfg *config.Config, adminID int64) error {
	auth, err := apiv1.NewAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if err != nil {
		return err
	}
	tok, err := auth.Mint(adminID)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Ledger ----
	store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// ---- Sessions and flood control ----
	var (
		sessions repository.SessionRepository
		flood    tele.FloodGuard
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		sessions = red.NewSessionRepo(redisClient, cfg.Redis.SessionTTL, logger)
		flood = red.NewFloodLimiter(redisClient, cfg.Redis.FloodLimit, cfg.Redis.FloodWindow)
		if store.ready != nil {
			store.grants = pg.NewAccessGrantRepoCacheDecorator(store.grants, redisClient, logger)
		}
	} else {
		logger.Warn().Msg("redis not configured: sessions kept in memory, flood control off")
		sessions = memory.NewSessionRepo()
	}

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Payment.MercadoPago.AccessToken != "" {
		mp, err := payAdapters.NewMercadoPagoGateway(cfg.Payment.MercadoPago, logger)
		if err != nil {
			return err
		}
		gateway = mp
	} else {
		logger.Warn().Msg("mercado pago not configured: using the fake gateway")
		gateway = payAdapters.NewNoopPaymentGateway()
	}

	// ---- AI prompt writer (optional) ----
	generator, err := buildGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	// ---- Localization & catalog ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Locale, "pt")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	catalog, err := prompts.Load()
	if err != nil {
		return fmt.Errorf("prompt catalog: %w", err)
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		logger.Warn().Err(err).Msg("timezone data missing, showing times in UTC")
		loc = time.UTC
	}

	// ---- Telegram client ----
	botAPI, err := tele.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	botAPI.Debug = cfg.Runtime.Dev && cfg.Log.Level == "trace"
	client := tele.NewBotClient(botAPI, tr, logger)
	if err := client.SetMenuCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not publish the command menu")
	}

	// ---- Use cases ----
	clock := adapter.SystemClock{}
	limiter := usecase.NewRateLimiter(store.limits, cfg.Limits.CreateCooldown, cfg.Limits.VerifyCooldown, logger)
	policy := usecase.NewStaticAdminPolicy(cfg.Bot.AdminIDs)
	charge := usecase.ChargeSettings{
		Amount:      cfg.Payment.Amount,
		Currency:    cfg.Payment.Currency,
		Description: cfg.Payment.Description,
		CallbackURL: cfg.Payment.CallbackURL,
		TTL:         cfg.Payment.TTL,
	}
	accessUC := usecase.NewAccessUseCase(store.payments, store.grants, store.audit, sessions, store.tm, gateway, limiter, client, policy, clock, charge, logger)
	reconcilerUC := usecase.NewReconcilerUseCase(store.payments, store.grants, store.audit, store.tm, gateway, limiter, client, clock, logger)
	promptUC := usecase.NewPromptUseCase(catalog, store.grants, generator, logger)

	facade := application.NewBotFacade(accessUC, reconcilerUC, promptUC, tr, application.Offer{Amount: cfg.Payment.Amount, Currency: cfg.Payment.Currency}, loc, logger)

	// ---- HTTP: webhook, probes, metrics, admin API ----
	var admin *apiv1.Server
	if cfg.Admin.JWTSecret != "" {
		auth, err := apiv1.NewAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		if err != nil {
			return fmt.Errorf("admin api: %w", err)
		}
		admin = apiv1.NewServer(accessUC, store.audit, auth, logger)
	}
	webhook := api.NewWebhookHandler(reconcilerUC, cfg.Payment.MercadoPago.WebhookSecret, logger)
	httpSrv := api.NewServer(cfg.HTTP, webhook, admin, store.ready, logger)

	errc := make(chan error, 3)
	go func() { errc <- httpSrv.Start() }()

	// ---- Sweeper ----
	pool := worker.NewPool(cfg.Sweeper.Workers, logger)
	pool.Start(ctx)
	sweeper := sched.NewPaymentSweeper(reconcilerUC, store.payments, pool, clock, sched.SweeperOptions{
		Interval:   cfg.Sweeper.Interval,
		StaleAfter: cfg.Sweeper.StaleAfter,
		BatchSize:  cfg.Sweeper.BatchSize,
	}, logger)
	go func() { errc <- sweeper.Run(ctx) }()

	// ---- Telegram polling ----
	bot, err := tele.NewRealTelegramBotAdapter(botAPI, client, facade, flood, cfg.Bot.Workers, 2*cfg.Payment.MercadoPago.Timeout, logger)
	if err != nil {
		return err
	}
	go func() { errc <- bot.StartPolling(ctx) }()
	logger.Info().Str("bot", botAPI.Self.UserName).Str("gateway", gateway.Name()).Str("lang", tr.Lang()).Msg("bot started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-errc:
		logger.Error().Err(runErr).Msg("component stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	pool.Stop()
	return runErr
}

func openLedger(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*ledger, error) {
	if cfg.Database.URL == "" {
		logger.Warn().Msg("database not configured: using the in-memory ledger")
		s := memory.New()
		return &ledger{
			payments: s.Payments(),
			grants:   s.Grants(),
			limits:   s.RateLimits(),
			audit:    s.Audit(),
			tm:       s.TxManager(),
			close:    s.Close,
		}, nil
	}

	pool, err := pg.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	go pg.ReportPoolStats(ctx, pool, 30*time.Second, logger)
	return &ledger{
		payments: pg.NewPaymentRepo(pool),
		grants:   pg.NewAccessGrantRepo(pool),
		limits:   pg.NewRateLimitRepo(pool),
		audit:    pg.NewAuditRepo(pool),
		tm:       pg.NewTxManager(pool),
		ready:    pool,
		close:    pool.Close,
	}, nil
}

// buildGenerator returns nil when no provider is configured, which disables /gerar.
func buildGenerator(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.PromptGenerator, error) {
	var chain []adapter.PromptGenerator
	if cfg.GeminiKey != "" {
		model := cfg.Model
		if cfg.Provider != "gemini" {
			model = "gemini-2.5-flash"
		}
		g, err := aiAdapters.NewGeminiGenerator(ctx, cfg.GeminiKey, cfg.GeminiURL, model, cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		chain = append(chain, g)
	}
	if cfg.OpenAIKey != "" {
		model := cfg.Model
		if cfg.Provider != "openai" {
			model = "gpt-4o-mini"
		}
		o, err := aiAdapters.NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIBaseURL, model, cfg.MaxOutputTokens, cfg.MaxTopicTokens, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		if cfg.Provider == "openai" {
			chain = append([]adapter.PromptGenerator{o}, chain...)
		} else {
			chain = append(chain, o)
		}
	}
	if len(chain) == 0 {
		logger.Info().Msg("no AI provider configured: prompt generation disabled")
		return nil, nil
	}
	return aiAdapters.NewLimitedGenerator(aiAdapters.NewFallbackGenerator(logger, chain...), cfg.ConcurrentLimit, cfg.Timeout), nil
}
