package amqp

import (
	"encoding/json"
	"time"

	"tasbeeh/internal/core"
)

// ContributionRecordedMessage announces a newly appended ledger row. It
// carries the full row so consumers need not read the ledger back.
type ContributionRecordedMessage struct {
	ID        int64     `json:"id"`
	EnteredBy string    `json:"entered_by"`
	Category  string    `json:"category"`
	Count     int64     `json:"count"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewContributionRecordedMessage builds the message for c.
func NewContributionRecordedMessage(c core.Contribution) *ContributionRecordedMessage {
	return &ContributionRecordedMessage{
		ID:        c.ID,
		EnteredBy: c.EnteredBy,
		Category:  c.Category,
		Count:     c.Count,
		Amount:    c.Amount,
		CreatedAt: c.CreatedAt,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ContributionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ContributionRecordedMessageFromJSON decodes a message body.
func ContributionRecordedMessageFromJSON(data []byte) (*ContributionRecordedMessage, error) {
	var msg ContributionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Contribution converts the message back to a ledger row.
func (m *ContributionRecordedMessage) Contribution() core.Contribution {
	return core.Contribution{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		EnteredBy: m.EnteredBy,
		Category:  m.Category,
		Count:     m.Count,
		Amount:    m.Amount,
	}
}
