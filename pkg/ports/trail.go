package ports

import "context"

// TrailSink defines the interface for recording the encoded event trail of a tree.
// Entries are grouped by the id of the root the event was dispatched to.
type TrailSink interface {
	// Append records one encoded event for the given root.
	Append(ctx context.Context, rootID string, payload []byte) error

	// Recent returns up to n of the most recent entries for the root, oldest first.
	// n <= 0 returns everything retained.
	Recent(ctx context.Context, rootID string, n int) ([][]byte, error)

	// Delete drops the trail of a root.
	Delete(ctx context.Context, rootID string) error
}
