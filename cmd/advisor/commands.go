package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soiladvisor/soiladvisor/internal/app"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

func newClassifyCmd(c *cli) *cobra.Command {
	var (
		coord  soil.Coordinate
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify the topsoil nutrients at a coordinate",
		Example: "  soiladvisor classify --lat -1.2921 --lon 36.8219\n" +
			"  soiladvisor classify --lat -1.2921 --lon 36.8219 --json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := coord.Validate(); err != nil {
				return err
			}

			components, err := app.Build(cmd.Context(), c.cfg, c.log, false)
			if err != nil {
				return err
			}

			report, err := components.Advisor.Classify(cmd.Context(), coord)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			return err
		},
	}

	coordinateFlags(cmd, &coord)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newRecommendCmd(c *cli) *cobra.Command {
	var (
		coord  soil.Coordinate
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "recommend",
		Short:   "Classify the topsoil and ask for fertilizer advice",
		Example: "  soiladvisor recommend --lat -1.2921 --lon 36.8219",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := coord.Validate(); err != nil {
				return err
			}

			components, err := app.Build(cmd.Context(), c.cfg, c.log, true)
			if err != nil {
				return err
			}

			report, err := components.Advisor.Advise(cmd.Context(), coord)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
			return err
		},
	}

	coordinateFlags(cmd, &coord)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long:  "Signs an access token with API_JWT_SIGNING_KEY for calling the soil endpoints of the API server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := app.NewJWTService(c.cfg)
			if svc == nil {
				return fmt.Errorf("API_JWT_SIGNING_KEY is not set")
			}

			token, expiresAt, err := svc.GenerateAccessToken(subject, scope, ttl)
			if err != nil {
				return err
			}

			c.log.Debug().
				Str("subject", subject).
				Time("expires_at", expiresAt).
				Msg("token issued")

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, such as a client or service name")
	cmd.Flags().StringVar(&scope, "scope", "", "optional space-separated scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
