package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATS publishes notifications for the messaging layer to deliver. One
// subject per recipient keeps per-user ordering without coupling this
// process to the chat transport.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS wraps an established connection. subjectPrefix defaults to
// "notify.user" when empty.
func NewNATS(conn *nats.Conn, subjectPrefix string) *NATS {
	if subjectPrefix == "" {
		subjectPrefix = "notify.user"
	}
	return &NATS{conn: conn, subject: subjectPrefix}
}

type message struct {
	ID      string   `json:"id"`
	UserID  int64    `json:"user_id"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
	SentAt  string   `json:"sent_at"`
}

func (n *NATS) Notify(_ context.Context, userID int64, text string, actions ...Action) error {
	payload, err := json.Marshal(message{
		ID:      uuid.New().String(),
		UserID:  userID,
		Text:    text,
		Actions: actions,
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%d", n.subject, userID)
	return n.conn.Publish(subject, payload)
}
