package adapter

import "context"

// Notifier tells a user that their access was unlocked.
type Notifier interface {
	NotifyAccessGranted(ctx context.Context, userID int64) error
}
