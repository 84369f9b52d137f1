package models

import "time"

// UsageOperation is the closed enum of metered operations. New operations
// require a reporting migration, so the set is deliberately small.
type UsageOperation string

const (
	OpLLM             UsageOperation = "llm"
	OpOCR             UsageOperation = "ocr"
	OpClaudeLog       UsageOperation = "claude_log"
	OpClaudeHook      UsageOperation = "claude_hook"
	OpTelemetryTrace  UsageOperation = "telemetry_trace"
	OpTelemetryMetric UsageOperation = "telemetry_metric"
	OpTelemetryLog    UsageOperation = "telemetry_log"
)

// ValidOperation reports whether op is a recognized usage operation.
func ValidOperation(op UsageOperation) bool {
	switch op {
	case OpLLM, OpOCR, OpClaudeLog, OpClaudeHook,
		OpTelemetryTrace, OpTelemetryMetric, OpTelemetryLog:
		return true
	}
	return false
}

// UsageRecord is an append-only record of SPU consumption.
type UsageRecord struct {
	ID             string         `json:"id"` // ULID, time-ordered
	OrganizationID string         `json:"organization_id"`
	SPUs           float64        `json:"spus"`
	Operation      UsageOperation `json:"operation"`
	Source         string         `json:"source"`
	Timestamp      time.Time      `json:"timestamp"`
}

// PaymentsCustomer holds an organization's three stacked credit balances.
// Debits consume subscription quota first, then purchased credits, then
// granted credits.
type PaymentsCustomer struct {
	OrganizationID          string     `json:"organization_id"`
	GrantedCredits          float64    `json:"granted_credits"`
	GrantedCreditsUsed      float64    `json:"granted_credits_used"`
	PurchasedCredits        float64    `json:"purchased_credits"`
	PurchasedCreditsUsed    float64    `json:"purchased_credits_used"`
	SubscriptionSPULimit    float64    `json:"subscription_spu_limit"`
	SubscriptionSPUsUsed    float64    `json:"subscription_spus_used"`
	SubscriptionPeriodStart *time.Time `json:"subscription_period_start,omitempty"`
	SubscriptionPeriodEnd   *time.Time `json:"subscription_period_end,omitempty"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// SubscriptionActive reports whether now falls inside the current
// subscription period.
func (c *PaymentsCustomer) SubscriptionActive(now time.Time) bool {
	if c.SubscriptionPeriodStart == nil || c.SubscriptionPeriodEnd == nil {
		return false
	}
	return !now.Before(*c.SubscriptionPeriodStart) && now.Before(*c.SubscriptionPeriodEnd)
}

// Available returns the total SPUs the org can still spend at the given time.
func (c *PaymentsCustomer) Available(now time.Time) float64 {
	total := (c.PurchasedCredits - c.PurchasedCreditsUsed) +
		(c.GrantedCredits - c.GrantedCreditsUsed)
	if c.SubscriptionActive(now) {
		total += c.SubscriptionSPULimit - c.SubscriptionSPUsUsed
	}
	return total
}

// UsageDataPoint is one calendar-day bucket in a usage report.
type UsageDataPoint struct {
	Date      string         `json:"date"` // YYYY-MM-DD in the requested timezone
	SPUs      float64        `json:"spus"`
	Operation UsageOperation `json:"operation,omitempty"`
}

// UsageReport aggregates usage records over a date range.
type UsageReport struct {
	DataPoints []UsageDataPoint `json:"data_points"`
	TotalSPUs  float64          `json:"total_spus"`
}
