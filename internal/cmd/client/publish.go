package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPublishCommand constructs the `publish` command group: publish into the
// shared log, probe the admission gate, and fan out directly to queues.
func NewPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a notification to the shared log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("key")
			data, _ := cmd.Flags().GetString("data")

			res, err := getTransport(baseURL).Publish(cmd.Context(), key, []byte(data))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(map[string]any{
				"admitted": res.Admitted,
				"id":       res.ID,
				"dedupKey": res.DedupKey,
			})
		},
	}
	publishCmd.Flags().StringP("key", "k", "", "Dedup key (generated when empty)")
	publishCmd.Flags().StringP("data", "d", "", "Payload data")

	publishCmd.AddCommand(newAdmitCommand(baseURL), newFanOutCommand(baseURL))
	return publishCmd
}

func newAdmitCommand(baseURL BaseURLFunc) *cobra.Command {
	admitCmd := &cobra.Command{
		Use:   "admit",
		Short: "Claim a dedup key without writing the log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			admitted, err := getTransport(baseURL).Admit(cmd.Context(), key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "admitted:", admitted)
			return nil
		},
	}
	admitCmd.Flags().StringP("key", "k", "", "Dedup key")
	return admitCmd
}

func newFanOutCommand(baseURL BaseURLFunc) *cobra.Command {
	fanoutCmd := &cobra.Command{
		Use:   "fanout",
		Short: "Deliver a payload directly to destination queues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("key")
			data, _ := cmd.Flags().GetString("data")
			dests, _ := cmd.Flags().GetStringArray("to")
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			admitted, err := getTransport(baseURL).FanOut(cmd.Context(), key, []byte(data), dests)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "admitted:", admitted)
			return nil
		},
	}
	fanoutCmd.Flags().StringP("key", "k", "", "Dedup key")
	fanoutCmd.Flags().StringP("data", "d", "", "Payload data")
	fanoutCmd.Flags().StringArray("to", []string{}, "Destination ID (repeat)")
	return fanoutCmd
}
