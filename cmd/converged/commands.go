package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monsele/Converge/config"
	"github.com/monsele/Converge/core"
	"github.com/monsele/Converge/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(versionCmd())
}

func startCmd() *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the settlement node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(basePath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := core.NewService(ctx, log, cfg)
			if err != nil {
				return err
			}
			return svc.Start()
		},
	}

	cmd.Flags().StringVar(&basePath, "home", "", "base directory holding config/ (default: data_dir from defaults)")
	return cmd
}

// loadConfig reads the config file under basePath, defaulting the base to
// the standard data directory. A missing file falls back to the built-in
// defaults so a fresh node starts without an init step.
func loadConfig(basePath string) (config.Config, error) {
	def, err := config.Default()
	if err != nil {
		return config.Config{}, err
	}
	if basePath == "" {
		basePath = def.DataDir
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return def, nil
		}
		return config.Config{}, err
	}
	return cfg, nil
}

func initConfigCmd() *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Default()
			if err != nil {
				return fmt.Errorf("failed to build default config: %w", err)
			}
			if basePath == "" {
				basePath = cfg.DataDir
			}
			if err := config.Save(&cfg, basePath); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote config under %s\n", basePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&basePath, "home", "", "base directory to place config/ in")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print converged version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Name:    converged\n")
			fmt.Printf("Version: %s\n", Version)
		},
	}
}
