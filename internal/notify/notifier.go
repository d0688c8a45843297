// Package notify delivers outbound messages to users and administrators.
// Delivery is fire-and-forget: callers log failures and move on, a lost
// notification never rolls back the ledger mutation that triggered it.
package notify

import "context"

// Action is a choice attached to a notification, e.g. approve/decline on a
// withdrawal. Ref carries the identifier the action is bound to.
type Action struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	Ref   string `json:"ref"`
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, text string, actions ...Action) error
}
