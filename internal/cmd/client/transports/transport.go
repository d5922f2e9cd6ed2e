package transports

import "context"

// Entry is one log entry returned by ListEntries.
type Entry struct {
	ID       string `json:"id"`
	DedupKey string `json:"dedupKey,omitempty"`
	Payload  []byte `json:"payload"`
}

// PublishResult reports the admission outcome of a publish.
type PublishResult struct {
	Admitted bool
	ID       string
	DedupKey string
}

// Transport abstracts how the CLI reaches a herald server.
type Transport interface {
	Admit(ctx context.Context, dedupKey string) (bool, error)
	Publish(ctx context.Context, dedupKey string, payload []byte) (PublishResult, error)
	FanOut(ctx context.Context, dedupKey string, payload []byte, destinations []string) (bool, error)
	Register(ctx context.Context, id, filter string) (bool, error)
	Destinations(ctx context.Context) ([]string, error)
	Ack(ctx context.Context, destination, id string) (bool, error)
	Unack(ctx context.Context, destination, id string) (bool, error)
	Migrate(ctx context.Context, oldID, newID string) (bool, error)
	ListEntries(ctx context.Context, after string, limit int) ([]Entry, string, error)

	// Maintenance operations.
	Trim(ctx context.Context, before string, batchLimit int) (int, error)
	Forget(ctx context.Context, dedupKey string) error
	QueueLen(ctx context.Context, destination string) (int, error)
	QueuePop(ctx context.Context, destination string) ([]byte, bool, error)
	QueueDrop(ctx context.Context, destination string) error
}
