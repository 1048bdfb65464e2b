// Package main provides the soil advisor command-line tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/soiladvisor/soiladvisor/internal/config"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

// Version is set at compile time via ldflags.
var Version = "dev"

const serviceName = "soiladvisor-cli"

// cli carries state shared by the subcommands.
type cli struct {
	envFile string
	verbose bool

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "soiladvisor",
		Short:         "Soil nutrient classification and fertilizer advice",
		Long:          "Looks up iSDAsoil topsoil properties for a coordinate, classifies N, P, K and pH into Low/Moderate/High, and asks a language model for fertilizer advice.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg

			// The CLI always logs in console format on stderr.
			cfg.LogFormat = "console"
			if c.verbose {
				cfg.LogLevel = "debug"
			} else if os.Getenv("LOG_LEVEL") == "" {
				cfg.LogLevel = "warn"
			}
			c.log = config.NewLogger(cfg, cmd.ErrOrStderr(), serviceName, Version)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newClassifyCmd(c),
		newRecommendCmd(c),
		newTokenCmd(c),
	)

	return root
}

// coordinateFlags registers --lat and --lon on cmd.
func coordinateFlags(cmd *cobra.Command, coord *soil.Coordinate) {
	cmd.Flags().Float64Var(&coord.Latitude, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&coord.Longitude, "lon", 0, "longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
