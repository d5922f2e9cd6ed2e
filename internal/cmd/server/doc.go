// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the herald runtime with its HTTP server and delivery workers, handling
// lifecycle and shutdown.
//
// Example:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{DataDir: "./data"})
package serverrun
