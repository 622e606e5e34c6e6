// Package servecmder provides the serve command that runs the blackboard
// engine and its transport together.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stigmergic-labs/sbp/api"
	"github.com/stigmergic-labs/sbp/pkg/blackboard"
	"github.com/stigmergic-labs/sbp/pkg/config"
	"github.com/stigmergic-labs/sbp/pkg/logger"
	"github.com/stigmergic-labs/sbp/pkg/store/inmemory"
)

type serveCommander struct {
	host       string
	port       uint
	logLevel   string
	logJSON    bool
	apiKeys    []string
	rateLimit  uint
	configDir  string
	viper      *viper.Viper
	logger     *slog.Logger
}

const serveLongDesc string = `Run the sbp blackboard and its JSON-RPC/SSE transport on a single
process. Flags override environment variables (SBP_*), which override
config.toml, which overrides the built-in defaults.`

const serveShortDesc string = "Run the blackboard and its transport"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			cmder.viper = v

			config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
				config.FlagHost, config.FlagPort, config.FlagLog, config.FlagLogJSON,
				config.FlagAPIKeys, config.FlagRateLimit,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagHost, &cmder.host)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagPort, &cmder.port)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLog, &cmder.logLevel)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagLogJSON, &cmder.logJSON)
	config.AddStringSliceFlag(cmd, config.ServeFlags, config.FlagAPIKeys, &cmder.apiKeys)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagRateLimit, &cmder.rateLimit)

	return cmd
}

// printBanner prints a one-line colorized startup banner. Color is disabled
// when stdout isn't an interactive terminal, e.g. under a log aggregator.
func printBanner(host string, port uint) {
	banner := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		Formatter: charmlog.TextFormatter,
	})
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		banner.SetColorProfile(termenv.Ascii)
	}
	banner.Info("sbp listening", "addr", fmt.Sprintf("%s:%d", host, port))
}

func (c *serveCommander) run() error {
	cfg := &config.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	// Auto-select human-readable text over JSON when attached to an
	// interactive terminal and the caller didn't explicitly ask for JSON.
	jsonLogs := cfg.Log.JSON
	if !jsonLogs && !term.IsTerminal(int(os.Stdout.Fd())) {
		jsonLogs = true
	}

	c.logger = logger.New(
		logger.WithDebug(cfg.Log.Level == "debug"),
		logger.WithJSON(jsonLogs),
	)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithWriter(f),
			logger.WithDebug(cfg.Log.Level == "debug"),
			logger.WithJSON(true),
		))
	}

	printBanner(cfg.Server.Host, uint(cfg.Server.Port))

	store := inmemory.NewDriver()

	dispatcher := blackboard.NewHTTPDispatcher(blackboard.DispatchConfig{
		Logger: logger.NewLoggerWithWriters(cfg.Log.Level == "debug"),
	})
	defer dispatcher.Close()

	core := blackboard.New(blackboard.Config{
		Store:                   store,
		MaxPheromones:           cfg.Evaluation.MaxPheromones,
		EmissionHistoryWindowMS: cfg.Evaluation.EmissionHistoryWindowMS,
		EvaluationInterval:      time.Duration(cfg.Evaluation.IntervalMS) * time.Millisecond,
		Dispatcher:              dispatcher,
		Logger:                  c.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)
	defer core.Close()

	apiCfg := api.Config{
		ListenAddr:                 fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		APIKeys:                    cfg.Auth.APIKeys,
		RateLimitRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		SSEKeepaliveSeconds:        cfg.Evaluation.SSEKeepaliveSeconds,
	}
	server := api.NewServer(apiCfg, core, c.logger, nil)

	c.logger.Info("starting sbp", "listen", apiCfg.ListenAddr, "log_level", cfg.Log.Level)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("transport error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
