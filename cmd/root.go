package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/evaluate"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "melodia",
	Short: "Monophonic melody transcriber",
	Long: `melodia transcribes monophonic melody recordings into note sequences,
estimates their major key and scores the result against ground truth.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
		} else {
			cfg = config.DefaultConfig()
			err = cfg.Validate()
		}
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)
		if noColor {
			logging.DisableColors()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
}

// Execute runs the root command. An interrupt cancels the running batch at
// the next song boundary.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

// songIndices returns the explicit song arguments or 0..SongCount-1
func songIndices(args []string) ([]int, error) {
	if len(args) == 0 {
		return evaluate.Indices(cfg.SongCount), nil
	}

	out := make([]int, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("song index %q is not a non-negative integer", a)
		}
		out = append(out, i)
	}
	return out, nil
}
