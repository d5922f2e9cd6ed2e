package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/jdertmann/herald/internal/cmd/client"
	serverrun "github.com/jdertmann/herald/internal/cmd/server"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

func main() {
	level := os.Getenv("HERALD_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "herald",
		Short: "Herald notification delivery CLI",
		Long:  "Herald is a single-binary notification fan-out service. This CLI manages the server and basic operations.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the herald server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsync, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			if fsync != "" {
				_ = os.Setenv("HERALD_FSYNC", fsync)
			}
			if logLevel != "" {
				_ = os.Setenv("HERALD_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("HERALD_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				ConfigPath: configPath,
				DataDir:    dataDir,
				HTTPAddr:   httpAddr,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file path (JSON or YAML)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never (default interval)")
	serverStartCmd.Flags().String("log-level", os.Getenv("HERALD_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("HERALD_LOG_FORMAT"), "Log format: text|json (default json)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewPublishCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewDestinationCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewEntriesCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("HERALD_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
