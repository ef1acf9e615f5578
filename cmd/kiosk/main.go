package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ichs-dev/tayyib-kiosk/internal/avatar"
	"github.com/ichs-dev/tayyib-kiosk/internal/flow"
	"github.com/ichs-dev/tayyib-kiosk/internal/render"
	"github.com/ichs-dev/tayyib-kiosk/pkg/config"
	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
	"github.com/ichs-dev/tayyib-kiosk/pkg/kioskapi"
	"github.com/ichs-dev/tayyib-kiosk/pkg/observability"
	"github.com/ichs-dev/tayyib-kiosk/pkg/session"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "kiosk",
		Short:         "Touchscreen pilgrimage-guidance kiosk front-end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config/kiosk.yaml", "configuration file")

	var variant, assetsDir string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the kiosk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cfgPath, variant, assetsDir)
		},
	}
	runCmd.Flags().StringVar(&variant, "variant", "chat", "flow variant: chat or ask")
	runCmd.Flags().StringVar(&assetsDir, "assets", "", "local directory holding the avatar loops (optional)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}

	root.AddCommand(runCmd, versionCmd)
	return root
}

func run(cfgPath, variant, assetsDir string) error {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lang, err := i18n.Parse(cfg.DefaultLang)
	if err != nil {
		return err
	}

	logger.Info("starting kiosk",
		zap.String("version", Version),
		zap.String("variant", variant),
		zap.String("backend", cfg.BackendBaseURL),
		zap.String("lang", string(lang)))

	store, err := newStore(cfg, lang)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	client := kioskapi.New(cfg.BackendBaseURL,
		kioskapi.WithStreamTimeout(cfg.Timing.StreamTimeout),
		kioskapi.WithRequestTimeout(cfg.Timing.RequestTimeout),
		kioskapi.WithLogger(logger.Named("kioskapi")))

	observability.InitMetrics()
	observability.SetVersion(Version)
	checker := observability.InitHealthChecker()
	if rs, ok := store.(*session.RedisStore); ok {
		checker.RegisterCheck(observability.SessionStoreCheck(rs.Ping))
	}
	checker.RegisterCheck(observability.BackendCheck(backendProbe(cfg.BackendBaseURL)))

	pool := newAvatarPool(cfg, assetsDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	obs := observability.NewServer(cfg.MetricsPort)
	g.Go(func() error {
		if err := obs.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observability server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return obs.Shutdown(shutdownCtx)
	})

	reset, err := startVariant(gctx, g, stop, variant, client, store, cfg, lang, pool, logger)
	if err != nil {
		return err
	}

	var sched *cron.Cron
	if cfg.NightlyReset != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(cfg.NightlyReset, func() {
			reset(flow.ResetScheduled)
		}); err != nil {
			return fmt.Errorf("nightly reset schedule: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("kiosk stopped")
	return nil
}

// startVariant wires the requested flow machine and its REPL into the
// group, returning the reset hook for the nightly schedule.
func startVariant(ctx context.Context, g *errgroup.Group, stop func(), variant string,
	client *kioskapi.Client, store session.Store, cfg *config.Config, lang i18n.Lang,
	pool *avatar.Pool, logger *zap.Logger) (func(flow.ResetReason), error) {

	switch variant {
	case "chat":
		view := render.NewChatView(os.Stdout, pool)
		m := flow.NewMachine(client, store, cfg.Timing, lang,
			flow.WithLogger(logger.Named("flow")),
			flow.WithNotify(view.Notify))
		if err := m.Start(ctx); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer stop()
			defer m.Close()
			return render.NewChatREPL(m).Run(ctx)
		})
		return m.Reset, nil

	case "ask":
		view := render.NewAskView(os.Stdout, pool)
		m := flow.NewAskMachine(client, store, cfg.Timing, lang,
			flow.WithAskLogger(logger.Named("flow")),
			flow.WithAskNotify(view.Notify))
		g.Go(func() error {
			defer stop()
			defer m.Close()
			return render.NewAskREPL(m).Run(ctx)
		})
		return m.Reset, nil
	}
	return nil, fmt.Errorf("unknown variant %q", variant)
}

func newStore(cfg *config.Config, lang i18n.Lang) (session.Store, error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(lang), nil
	}
	return session.NewRedisStore(session.RedisConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DefaultLang: lang,
	})
}

func newAvatarPool(cfg *config.Config, assetsDir string, logger *zap.Logger) *avatar.Pool {
	catalog := avatar.NewCatalog(cfg.AvatarAssets)
	if assetsDir == "" {
		return avatar.NewPool(catalog, nil)
	}
	pool := avatar.NewPool(catalog, os.DirFS(assetsDir))
	if missing := pool.Preload(); len(missing) > 0 {
		for _, s := range missing {
			logger.Warn("avatar loop missing", zap.String("state", string(s)))
		}
	}
	return pool
}

func backendProbe(baseURL string) func(context.Context) error {
	hc := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("backend health: %d", resp.StatusCode)
		}
		return nil
	}
}
