// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/mission-control/auth"
	"github.com/danielhkuo/mission-control/cliparse"
	"github.com/danielhkuo/mission-control/clock"
	"github.com/danielhkuo/mission-control/db"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/pubsub"
	"github.com/danielhkuo/mission-control/router"
	"github.com/danielhkuo/mission-control/scheduler"
	"github.com/danielhkuo/mission-control/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mission-control",
		Short: "Mission Control - collaborative rocket missions for community posts",
		Long: `Mission Control runs one shared rocket mission per post: design by vote,
a launch countdown, a single flight decision, then points for everyone who
took part.

Configuration comes from the environment (and .env), with flag overrides.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(resetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env, the environment and flags, then installs the
// default logger.
func loadConfig(args []string) (cliparse.Config, error) {
	if err := cliparse.LoadDotEnv(); err != nil {
		return cliparse.Config{}, err
	}
	cfg, err := cliparse.ParseFlags(args)
	if err != nil {
		return cliparse.Config{}, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// setupLogging writes JSON when stderr is not a terminal and text otherwise.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// service holds every wired component of a running instance.
type service struct {
	cfg     cliparse.Config
	conn    *db.DB
	store   *db.SQLStore
	ledger  *ledger.Ledger
	hub     *pubsub.Hub
	queue   *scheduler.Queue
	machine *mission.Machine
	worker  *scheduler.Worker
	sweeper *scheduler.Sweeper
	clock   clock.Clock
}

func openService(ctx context.Context, cfg cliparse.Config) (*service, error) {
	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := db.CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("schema creation failed: %w", err)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	clk := clock.Real()
	s := &service{
		cfg:    cfg,
		conn:   conn,
		store:  db.NewSQLStore(conn),
		ledger: ledger.New(conn, cfg.LedgerSeason),
		hub:    pubsub.NewHub(),
		queue:  scheduler.NewQueue(conn),
		clock:  clk,
	}
	s.machine = mission.New(mission.Deps{
		Store:     s.store,
		Ledger:    s.ledger,
		Publisher: s.hub,
		Scheduler: s.queue,
		Clock:     clk,
	})
	s.worker = scheduler.NewWorker(s.queue, s.machine, clk, scheduler.Config{})
	s.sweeper = scheduler.NewSweeper(s.store, s.machine, 0)
	return s, nil
}

func (s *service) Close() {
	s.hub.Close()
	s.conn.Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "serve [flags]",
		Short:              "Run the HTTP API, the scheduler worker and the deadline sweep",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OTLPEndpoint)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					slog.Warn("tracing shutdown failed", "error", err)
				}
			}()

			svc, err := openService(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			mux := router.NewRouter(router.Deps{
				Machine:  svc.machine,
				Ledger:   svc.ledger,
				Hub:      svc.hub,
				Sweeper:  svc.sweeper,
				Resolver: auth.NewResolver(cfg.JWTSecret, svc.clock.Now),
			}, cfg)

			server := &http.Server{
				Handler:           middleware.CORS(mux),
				Addr:              ":" + strconv.Itoa(cfg.Port),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("Listening", "port", cfg.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error { return svc.worker.Run(gctx) })
			g.Go(func() error { return svc.sweeper.Run(gctx, cfg.SweepInterval, svc.clock.Now) })
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			slog.Info("Server closed", "error", err)
			return err
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "sweep [flags]",
		Short:              "Fire every expired timer once and exit",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}

			svc, err := openService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.sweeper.Sweep(cmd.Context(), svc.clock.Now())
			if err != nil {
				return err
			}

			pending, err := svc.queue.Pending(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("scanned %s missions, %s fired, %s still scheduled\n",
				humanize.Comma(int64(res.Scanned)),
				color.GreenString(humanize.Comma(int64(res.Fired))),
				humanize.Comma(int64(pending)))
			if res.Failed > 0 {
				color.Red("%d missions failed to settle; see logs", res.Failed)
				return fmt.Errorf("%d sweep failures", res.Failed)
			}
			for _, post := range res.Posts {
				fmt.Printf("  %s %s\n", color.GreenString("✓"), post)
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "reset <post> [flags]",
		Short:              "Return a post's mission to IDLE as a moderator",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post := strings.TrimSpace(args[0])
			if post == "" || strings.HasPrefix(post, "-") {
				return errors.New("reset requires a post id as its first argument")
			}

			cfg, err := loadConfig(args[1:])
			if err != nil {
				return err
			}

			svc, err := openService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor := mission.Actor{Username: "cli", Moderator: true}
			m, err := svc.machine.Reset(cmd.Context(), post, actor)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s is %s (version %d)\n", color.YellowString("reset"), post, m.Phase, m.Version)
			return nil
		},
	}
}
