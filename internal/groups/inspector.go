// Package groups gives the core a view of a chat group through the
// operator's automated account.
package groups

import (
	"context"
	"errors"
	"time"
)

// Info is what the automated account can tell about a group it inspected.
type Info struct {
	Title           string
	EarliestMessage time.Time
	MessageCount    int
}

// Inspector is the contract the transfer flow needs from the automated
// account: resolve a link, check its own admin rights, and leave a group it
// no longer needs to sit in.
type Inspector interface {
	Resolve(ctx context.Context, link string) (Info, error)
	IsAdministrator(ctx context.Context, link string, accountID int64) (bool, error)
	// Leave is best-effort cleanup; callers ignore its error.
	Leave(ctx context.Context, link string) error
}

var (
	// ErrNotFound means the link does not resolve to a group the account
	// can see.
	ErrNotFound = errors.New("group not found")
	// ErrAccessDenied means the group exists but the account cannot read it.
	ErrAccessDenied = errors.New("group access denied")
)
