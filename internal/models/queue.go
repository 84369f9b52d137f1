package models

import (
	"encoding/json"
	"time"
)

// Queue names for the two pipeline stages.
const (
	QueueOCR = "ocr"
	QueueLLM = "llm"
)

// QueueMessageStatus is the lifecycle state of a queued message.
type QueueMessageStatus string

const (
	MsgStatusReady  QueueMessageStatus = "ready"
	MsgStatusLeased QueueMessageStatus = "leased"
)

// QueueMessage is one durable message on a work queue. Delivery is
// at-least-once: a leased message whose lease expires returns to ready and
// will be delivered again.
type QueueMessage struct {
	ID             string             `json:"msg_id"` // ULID, time-ordered for FIFO-ish leasing
	Queue          string             `json:"queue"`
	Payload        json.RawMessage    `json:"payload"`
	Status         QueueMessageStatus `json:"status"`
	Attempts       int                `json:"attempts"`
	VisibleAt      time.Time          `json:"visible_at"`
	LeasedBy       string             `json:"leased_by,omitempty"`
	LeaseExpiresAt *time.Time         `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// OCRJobPayload is the payload of a message on the ocr queue.
type OCRJobPayload struct {
	DocumentID     string `json:"document_id"`
	OrganizationID string `json:"organization_id"`
	Force          bool   `json:"force,omitempty"`
}

// LLMJobPayload is the payload of a message on the llm queue. PromptRevID
// may be the literal "default", which fans out to every tagged prompt
// revision intersecting the document's tags plus the implicit default prompt.
type LLMJobPayload struct {
	DocumentID     string `json:"document_id"`
	OrganizationID string `json:"organization_id"`
	PromptRevID    string `json:"prompt_revid"`
	Force          bool   `json:"force,omitempty"`
}
