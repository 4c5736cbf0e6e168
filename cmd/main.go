package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/victornm/blindquiz/internal/config"
	"github.com/victornm/blindquiz/internal/server"
	"github.com/victornm/blindquiz/internal/telemetry"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Load .env failed: %v", err)
	}

	if err := newCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "blindquiz",
		Short:         "Multiplayer audio guessing quiz server.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(path)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&path, "config", "c", os.Getenv("CONFIG_PATH"), "path to the config file (env: CONFIG_PATH)")

	return cmd
}

func run(path string) error {
	c, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	logger, err := telemetry.NewLogger(os.Stderr, c.Log)
	if err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	slog.SetDefault(logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		return fmt.Errorf("init server failed: %w", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
	return nil
}

func loadConfig(p string) (server.Config, error) {
	c := server.DefaultConfig()

	if p == "" {
		return c, fmt.Errorf("config path not set, use --config or CONFIG_PATH")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
