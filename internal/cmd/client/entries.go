package client

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewEntriesCommand constructs the `entries` command: read log entries after
// a cursor position.
func NewEntriesCommand(baseURL BaseURLFunc) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List log entries after a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			after, _ := cmd.Flags().GetString("after")
			limit, _ := cmd.Flags().GetInt("limit")

			items, tail, err := getTransport(baseURL).ListEntries(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			var out struct {
				Entries []map[string]any `json:"entries"`
				Tail    string           `json:"tail"`
			}
			out.Entries = make([]map[string]any, 0, len(items))
			for _, it := range items {
				m := decodedEntry(it.ID, it.Payload)
				if it.DedupKey != "" {
					m["dedup_key"] = it.DedupKey
				}
				out.Entries = append(out.Entries, m)
			}
			out.Tail = tail
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	entriesCmd.Flags().String("after", "", "Read entries after this ID (epoch-seq)")
	entriesCmd.Flags().Int("limit", 100, "Max entries to return")
	return entriesCmd
}
