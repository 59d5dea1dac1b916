package cmd

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Botopia-SAS/ezmig-efiling/internal/config"
	"github.com/Botopia-SAS/ezmig-efiling/internal/observability"
	"github.com/Botopia-SAS/ezmig-efiling/internal/runreg"
	"github.com/Botopia-SAS/ezmig-efiling/internal/server"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/bot"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/handoff"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/reconcile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the e-filing HTTP service",
	Long: `Start the HTTP service exposing the bot-run stream, the handoff
preparation endpoint, and health/metrics.

Example:
  efiling serve
  efiling serve --host 0.0.0.0 --port 9000
  EFILING_SIGNING_SECRET=... efiling serve`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	// The handoff path needs the signing secret; the service refuses to
	// start without it rather than failing on first use.
	if err := cfg.RequireSigningSecret(); err != nil {
		return err
	}
	minter, err := handoff.NewMinter([]byte(cfg.SigningSecret), handoff.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}

	// The portal driver and the case-management sources are pluggable
	// collaborators. The in-memory implementations stand in until the
	// real integrations are wired via the case-management deployment.
	deps := server.Deps{
		Config:    cfg,
		NewDriver: func() bot.Driver { return &bot.SimDriver{} },
		Minter:    minter,
		CaseForms: filing.NewMemoryCaseFormSource(),
		Autosaves: reconcile.NewMemorySource(),
		Registry:  runreg.New(),
		Metrics:   observability.NewMetrics(),
		Logger:    observability.ServerLogger,
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, deps, versionInfo.Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.ServerLogger.Info("serving",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("version", versionInfo.Version))

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
