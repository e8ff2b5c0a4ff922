package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quotedeck/logocache/internal/logger"
)

func newCycleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Operate the refresh cycle directly",
	}
	cmd.AddCommand(newCycleStartCommand(), newCycleTickCommand())
	return cmd
}

func newCycleStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Arm a new refresh cycle (same as the daily trigger)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCmdContext(cmd)
			if err != nil {
				return err
			}
			svc, err := cc.openServices()
			if err != nil {
				return err
			}
			defer svc.close()

			if err := svc.runner.StartCycle(cc.ctx); err != nil {
				return err
			}
			logger.Info(cc.ctx, "Cycle armed", "tickers", len(cc.cfg.Tickers))
			return nil
		},
	}
}

func newCycleTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Fire one refresh tick (same as the minute trigger)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCmdContext(cmd)
			if err != nil {
				return err
			}
			svc, err := cc.openServices()
			if err != nil {
				return err
			}
			defer svc.close()

			outcome, err := svc.runner.Tick(cc.ctx)
			if err != nil {
				return err
			}
			logger.Info(cc.ctx, "Tick finished",
				"status", string(outcome.Status),
				"ticker", outcome.Ticker,
				"detail", outcome.Detail)
			return nil
		},
	}
}
