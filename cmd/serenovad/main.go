package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/serenova-ai/serenova/pkg/core/completion"
	"github.com/serenova-ai/serenova/pkg/core/tts"
	"github.com/serenova-ai/serenova/pkg/core/turn"
	"github.com/serenova-ai/serenova/pkg/gateway/auth"
	"github.com/serenova-ai/serenova/pkg/gateway/config"
	"github.com/serenova-ai/serenova/pkg/gateway/metrics"
	"github.com/serenova-ai/serenova/pkg/gateway/realtime"
	gatewayserver "github.com/serenova-ai/serenova/pkg/gateway/server"
	"github.com/serenova-ai/serenova/pkg/store"
)

type daemonDeps struct {
	loadConfig   func() (config.Config, error)
	buildGateway func(context.Context, config.Config, *slog.Logger) (*gatewayserver.Server, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultDaemonDeps() daemonDeps {
	return daemonDeps{
		loadConfig:   config.LoadFromEnv,
		buildGateway: buildGateway,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Migrate(); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, pg.Close, nil
}

func buildCompleter(ctx context.Context, cfg config.Config, logger *slog.Logger) (*completion.Service, error) {
	var provider completion.Provider
	switch cfg.CompletionBackend {
	case config.BackendGemini:
		p, err := completion.NewGemini(ctx, cfg.GeminiAPIKey, cfg.CompletionModel)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		provider = p
	default:
		if cfg.CompletionAPIKey == "" {
			// No credential: leave the provider nil so every reply
			// short-circuits to the unavailable text without network I/O.
			logger.Warn("no completion credential configured; replies will be unavailable")
			break
		}
		var opts []completion.OpenAIOption
		if cfg.CompletionBaseURL != "" {
			opts = append(opts, completion.WithBaseURL(cfg.CompletionBaseURL))
		}
		if cfg.CompletionModel != "" {
			opts = append(opts, completion.WithModel(cfg.CompletionModel))
		}
		provider = completion.NewOpenAI(cfg.CompletionAPIKey, opts...)
	}
	return completion.NewService(provider, logger, completion.WithTimeout(cfg.CompletionTimeout)), nil
}

func buildSpeech(cfg config.Config, logger *slog.Logger) *tts.Chain {
	var providers []tts.Provider
	if cfg.ElevenLabsAPIKey != "" {
		providers = append(providers, tts.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID))
	}
	if cfg.VoiceRSSAPIKey != "" {
		providers = append(providers, tts.NewVoiceRSS(cfg.VoiceRSSAPIKey))
	}
	if len(providers) == 0 {
		return nil
	}
	return tts.NewChain(logger, providers...)
}

func buildVerifier(cfg config.Config) auth.Verifier {
	if cfg.IdentityBaseURL != "" {
		return auth.NewIdentityVerifier(cfg.IdentityBaseURL, cfg.IdentityAPIKey)
	}
	return auth.NewStaticVerifier(cfg.StaticTokens)
}

func buildGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, func(), error) {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	completer, err := buildCompleter(ctx, cfg, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	// The hub exists before the orchestrator so turn events reach
	// subscribed watchers from the first turn on.
	hub := realtime.NewHub(logger)
	m := metrics.New("serenova")

	turnOpts := []turn.Option{
		turn.WithNotifier(hub),
		turn.WithHistoryLimit(cfg.HistoryLimit),
	}
	if speech := buildSpeech(cfg, logger); speech != nil {
		speech.SetRecorder(m.RecordSynthesis)
		turnOpts = append(turnOpts, turn.WithSpeech(speech))
	}

	srv := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Turns:    turn.New(st, completer, logger, turnOpts...),
		Verifier: buildVerifier(cfg),
		Hub:      hub,
		Metrics:  m,
	})
	return srv, closeStore, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runDaemon(ctx context.Context, logger *slog.Logger, deps daemonDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildGateway == nil {
		return errors.New("missing buildGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, closeGateway, err := deps.buildGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer closeGateway()

	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "backend", cfg.CompletionBackend)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().SetDraining(true)
	if n := gw.Tracker().Count(); n > 0 {
		logger.Warn("draining live sessions", "count", n)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.Tracker().Wait(waitCtx) {
		gw.Tracker().CancelAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps daemonDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "serenovad: load .env: %v\n", err)
		return 1
	}

	if err := runDaemon(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "serenovad: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultDaemonDeps()))
}
