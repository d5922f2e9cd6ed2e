// Package client contains Cobra CLI commands that drive a herald server
// over its HTTP API.
package client

import (
	"github.com/spf13/cobra"

	transports "github.com/jdertmann/herald/internal/cmd/client/transports"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

func getTransport(baseURL BaseURLFunc) transports.Transport {
	return transports.NewHTTPTransport(baseURL())
}

// NewRoot constructs a root Cobra command carrying all client command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "herald",
		Short: "Herald client commands",
	}
	root.AddCommand(NewPublishCommand(baseURL))
	root.AddCommand(NewDestinationCommand(baseURL))
	root.AddCommand(NewEntriesCommand(baseURL))
	root.AddCommand(NewAdminCommand(baseURL))
	return root
}
