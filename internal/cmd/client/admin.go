package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAdminCommand constructs the `admin` command group: log trimming,
// admission record release, and direct queue maintenance.
func NewAdminCommand(baseURL BaseURLFunc) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Server maintenance operations"}
	adminCmd.AddCommand(
		newAdminTrimCommand(baseURL),
		newAdminForgetCommand(baseURL),
		newAdminQueueCommand(baseURL),
	)
	return adminCmd
}

func newAdminTrimCommand(baseURL BaseURLFunc) *cobra.Command {
	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "Delete log entries older than an entry ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			before, _ := cmd.Flags().GetString("before")
			batchLimit, _ := cmd.Flags().GetInt("batch-limit")
			if before == "" {
				return fmt.Errorf("--before is required")
			}
			deleted, err := getTransport(baseURL).Trim(cmd.Context(), before, batchLimit)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "deleted:", deleted)
			return nil
		},
	}
	trimCmd.Flags().String("before", "", "Delete entries with ID below this (epoch-seq)")
	trimCmd.Flags().Int("batch-limit", 0, "Max deletes per commit (0 for the server default)")
	return trimCmd
}

func newAdminForgetCommand(baseURL BaseURLFunc) *cobra.Command {
	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Release an admitted dedup key so it can be admitted again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			if err := getTransport(baseURL).Forget(cmd.Context(), key); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "forgotten:", key)
			return nil
		},
	}
	forgetCmd.Flags().String("key", "", "Dedup key to release")
	return forgetCmd
}

func newAdminQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Direct queue maintenance"}
	queueCmd.PersistentFlags().String("id", "", "Destination ID")

	queueCmd.AddCommand(&cobra.Command{
		Use:   "len",
		Short: "Report a destination's queue backlog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, err := queueDest(cmd)
			if err != nil {
				return err
			}
			n, err := getTransport(baseURL).QueueLen(cmd.Context(), dest)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "length:", n)
			return nil
		},
	})
	queueCmd.AddCommand(&cobra.Command{
		Use:   "pop",
		Short: "Remove and print the oldest queued message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, err := queueDest(cmd)
			if err != nil {
				return err
			}
			payload, ok, err := getTransport(baseURL).QueuePop(cmd.Context(), dest)
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "queue empty")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	})
	queueCmd.AddCommand(&cobra.Command{
		Use:   "drop",
		Short: "Discard every queued message for a destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, err := queueDest(cmd)
			if err != nil {
				return err
			}
			if err := getTransport(baseURL).QueueDrop(cmd.Context(), dest); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "dropped:", dest)
			return nil
		},
	})
	return queueCmd
}

func queueDest(cmd *cobra.Command) (string, error) {
	dest, _ := cmd.Flags().GetString("id")
	if dest == "" {
		return "", fmt.Errorf("--id is required")
	}
	return dest, nil
}
