package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweeney/car-alarm/internal/config"
	"github.com/sweeney/car-alarm/internal/logger"
)

type rootFlags struct {
	configPath string
	logLevel   string
	broker     string
	httpAddr   string
	printState bool
	saveTo     string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "car-alarm",
		Short: "Car alarm controller on Linux GPIO",
		Long: `car-alarm arms itself a jumper-selected delay after the door opens,
sounds a warning siren when the ignition is switched on and then cuts the
engine relay. Only the secret key disarms it. With the debug jumper fitted at
boot it instead drives every output while any sensor is asserted.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			lvl, ok := logger.ParseLogLevel(cfg.LogLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", cfg.LogLevel)
			}
			logger.SetLevel(lvl)
			logger.Debugf(cmd.Context(), "settings: %+v", *cfg)

			if flags.saveTo != "" {
				return saveConfig(cmd, flags.saveTo, cfg)
			}

			return run(cmd.Context(), cfg, flags.printState)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "",
		fmt.Sprintf("settings file (default %q if present)", config.DefaultConfigFilename))
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.broker, "broker", "", "MQTT broker for telemetry (empty disables)")
	cmd.Flags().StringVar(&flags.httpAddr, "http", "", "HTTP status address (empty disables)")
	cmd.Flags().BoolVar(&flags.printState, "print-state", false, "print sensor levels and selected delay, then exit")
	cmd.Flags().StringVar(&flags.saveTo, "save-config", "", "write the effective settings to this file, then exit")

	return cmd
}

// loadConfig reads the settings file and applies the flags the user set explicitly.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if cmd.Flags().Changed("broker") {
		cfg.Broker = flags.broker
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTPAddr = flags.httpAddr
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the merged file and flag settings so they can be reused with --config.
func saveConfig(cmd *cobra.Command, path string, cfg *config.Config) error {
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "settings written to %s\n", path)
	return nil
}
