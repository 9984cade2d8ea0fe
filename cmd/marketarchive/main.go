package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"MarketArchive/internal/api"
	"MarketArchive/internal/config"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[FATAL] %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "marketarchive",
	Short:         "Collect, reconcile and serve market and financial data for one company",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[WARN] load .env: %v", err)
		}

		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = "configs/config.yaml"
			if v := os.Getenv("CONFIG_PATH"); v != "" {
				path = v
			}
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: configs/config.yaml or $CONFIG_PATH)")

	rootCmd.AddCommand(runCmd, collectCmd, serveCmd, versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the collection loop and the read API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Printf("[INFO] MarketArchive %s starting for %s (%s / %s)",
			version, cfg.Subject.Name, cfg.Subject.Symbol, cfg.Subject.HKSymbol)

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		sched, err := a.newScheduler()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return api.NewServer(a.store, cfg.Subject.Name, cfg.API.CORSOrigins).ListenAndServe(ctx, cfg.API.Addr)
		})
		g.Go(func() error {
			sched.Loop(ctx)
			return nil
		})
		if a.telegram != nil {
			g.Go(func() error {
				a.telegram.StartPolling(ctx, sched.HandleCommand)
				return nil
			})
			log.Println("[INFO] Telegram polling started")
		}

		log.Println("[INFO] MarketArchive is running. Press Ctrl+C to stop.")
		err = g.Wait()
		log.Println("[INFO] MarketArchive stopped")
		return err
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		sched, err := a.newScheduler()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		res, err := sched.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("collection cycle %s: %w", res.RunID, err)
		}
		fmt.Printf("run %s: market=%v financial=%v news=%v\n",
			res.RunID, res.Market != nil, res.Financial != nil, res.News != nil)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API over existing documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()
		return api.NewServer(a.store, cfg.Subject.Name, cfg.API.CORSOrigins).ListenAndServe(ctx, cfg.API.Addr)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketArchive %s (commit %s)\n", version, commit)
	},
}
