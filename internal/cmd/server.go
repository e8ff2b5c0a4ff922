package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quotedeck/logocache/internal/frontend"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/scheduler"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and the refresh scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCmdContext(cmd)
			if err != nil {
				return err
			}

			if host, _ := cmd.Flags().GetString("host"); host != "" {
				cc.cfg.Server.Host = host
			}
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cc.cfg.Server.Port = port
			}

			svc, err := cc.openServices()
			if err != nil {
				return err
			}
			defer svc.close()

			ctx, cancel := context.WithCancel(cc.ctx)
			defer cancel()

			sched := scheduler.New(cc.cfg, svc.runner)
			go func() {
				if err := sched.Start(ctx); err != nil {
					logger.Error(ctx, "Scheduler failed", "err", err)
					cancel()
				}
			}()

			srv := frontend.NewServer(cc.cfg, svc.st, svc.blobs, svc.runner)
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("host", "", "bind host (overrides config)")
	cmd.Flags().Int("port", 0, "bind port (overrides config)")

	return cmd
}
