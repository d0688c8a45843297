package transfer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// NewKey derives the opaque token a pending transfer is filed under. Mixing
// the requester, the link and the issuance instant makes keys single-use
// and infeasible to guess across sessions.
func NewKey(userID int64, link string, issuedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s:%d", userID, link, issuedAt.UnixNano())))
	return "t" + hex.EncodeToString(sum[:])[:20]
}
