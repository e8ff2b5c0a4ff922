package cmd

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotedeck/logocache/internal/kv"
	"github.com/quotedeck/logocache/internal/state"
)

type cycleStatus struct {
	Tickers     []string       `json:"tickers"`
	Cursor      int            `json:"cursor"`
	ActiveUntil *time.Time     `json:"active_until,omitempty"`
	Blocked     *time.Time     `json:"blocked_until,omitempty"`
	LastRun     *time.Time     `json:"last_run,omitempty"`
	LastResult  *state.Outcome `json:"last_run_result,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the refresh cycle status as JSON",
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

			ctx := cc.ctx
			status := cycleStatus{Tickers: cc.cfg.Tickers}

			if status.Cursor, err = svc.st.Cursor(ctx); err != nil {
				return err
			}
			if t, ok, err := svc.st.CycleActiveUntil(ctx); err != nil {
				return err
			} else if ok {
				status.ActiveUntil = &t
			}
			if t, ok, err := svc.st.BlockedUntil(ctx); err != nil {
				return err
			} else if ok {
				status.Blocked = &t
			}
			if t, ok, err := svc.st.LastRun(ctx); err != nil {
				return err
			} else if ok {
				status.LastRun = &t
			}
			if last, err := svc.st.LastResult(ctx); err == nil {
				status.LastResult = last
			} else if !errors.Is(err, kv.ErrNotFound) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}
