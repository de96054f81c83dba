package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetcomply/internal/compliance"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Create expiry notifications once for every tenant",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := compliance.NewService(st, cfg.Compliance.AtRiskDays, logger)
	created, err := compliance.NewSweeper(svc, cfg.Compliance.SweepInterval.Duration, logger).SweepAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "notifications created: %d\n", created)
	return nil
}
