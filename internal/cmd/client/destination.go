package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewDestinationCommand constructs the `destination` command group.
func NewDestinationCommand(baseURL BaseURLFunc) *cobra.Command {
	destCmd := &cobra.Command{Use: "destination", Short: "Destination operations"}
	destCmd.AddCommand(
		newDestinationRegisterCommand(baseURL),
		newDestinationListCommand(baseURL),
		newDestinationMigrateCommand(baseURL),
		newDestinationAckCommand(baseURL),
		newDestinationUnackCommand(baseURL),
	)
	return destCmd
}

func newDestinationRegisterCommand(baseURL BaseURLFunc) *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a destination (new ones start at the log tail)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			filter, _ := cmd.Flags().GetString("filter")
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			created, err := getTransport(baseURL).Register(cmd.Context(), id, filter)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "created:", created)
			return nil
		},
	}
	registerCmd.Flags().String("id", "", "Destination ID")
	registerCmd.Flags().String("filter", "", "CEL filter expression")
	return registerCmd
}

func newDestinationListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered destinations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := getTransport(baseURL).Destinations(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string][]string{"destinations": ids})
		},
	}
}

func newDestinationMigrateCommand(baseURL BaseURLFunc) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move a destination identity to a new ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldID, _ := cmd.Flags().GetString("from")
			newID, _ := cmd.Flags().GetString("to")
			if oldID == "" || newID == "" {
				return fmt.Errorf("--from and --to are required")
			}
			applied, err := getTransport(baseURL).Migrate(cmd.Context(), oldID, newID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "applied:", applied)
			return nil
		},
	}
	migrateCmd.Flags().String("from", "", "Current destination ID")
	migrateCmd.Flags().String("to", "", "New destination ID")
	return migrateCmd
}

func newDestinationAckCommand(baseURL BaseURLFunc) *cobra.Command {
	ackCmd := &cobra.Command{
		Use:   "ack",
		Short: "Advance a destination cursor past one entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, id, err := cursorArgs(cmd)
			if err != nil {
				return err
			}
			applied, err := getTransport(baseURL).Ack(cmd.Context(), dest, id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "applied:", applied)
			return nil
		},
	}
	addCursorFlags(ackCmd)
	return ackCmd
}

func newDestinationUnackCommand(baseURL BaseURLFunc) *cobra.Command {
	unackCmd := &cobra.Command{
		Use:   "unack",
		Short: "Roll a destination cursor back across one entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest, id, err := cursorArgs(cmd)
			if err != nil {
				return err
			}
			applied, err := getTransport(baseURL).Unack(cmd.Context(), dest, id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "applied:", applied)
			return nil
		},
	}
	addCursorFlags(unackCmd)
	return unackCmd
}

func addCursorFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "Destination ID")
	cmd.Flags().String("entry", "", "Entry ID (epoch-seq)")
}

func cursorArgs(cmd *cobra.Command) (dest, id string, err error) {
	dest, _ = cmd.Flags().GetString("id")
	id, _ = cmd.Flags().GetString("entry")
	if dest == "" || id == "" {
		return "", "", fmt.Errorf("--id and --entry are required")
	}
	return dest, id, nil
}
