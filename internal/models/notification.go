package models

// RecipientKind selects which notification variant a recipient receives
type RecipientKind string

const (
	RecipientOwner  RecipientKind = "owner"  // full detail
	RecipientTarget RecipientKind = "target" // CA only
)

// Notification is a message the chat client should deliver. The core never
// retries it; delivery failures are the client's concern.
type Notification struct {
	ID        string        `json:"id"`
	Recipient RecipientKind `json:"recipient"`
	ChatID    int64         `json:"chat_id"`
	Detection Detection     `json:"detection"`
	Address   string        `json:"address"`
}

// Payload returns the data the recipient is meant to see: the full detection
// for the owner, the bare address for the target.
func (n *Notification) Payload() any {
	if n.Recipient == RecipientTarget {
		return n.Address
	}
	return n.Detection
}
