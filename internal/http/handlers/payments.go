package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// UsageRangeInput is the query of GET /orgs/{org}/payments/usage/range.
type UsageRangeInput struct {
	OrgPath
	Start        string `query:"start" required:"true" doc:"RFC 3339 lower bound"`
	End          string `query:"end" required:"true" doc:"RFC 3339 upper bound"`
	PerOperation bool   `query:"per_operation" doc:"Break data points down by operation"`
	Timezone     string `query:"timezone" doc:"IANA timezone for day bucketing, default UTC"`
}

// UsageRangeOutput is the aggregated usage report.
type UsageRangeOutput struct {
	Body *models.UsageReport
}

// GetUsageRange aggregates SPU usage into calendar-day buckets.
func (h *Handlers) GetUsageRange(ctx context.Context, input *UsageRangeInput) (*UsageRangeOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, input.Start)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid start timestamp")
	}
	end, err := time.Parse(time.RFC3339, input.End)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid end timestamp")
	}
	report, err := h.services.Credit.UsageRange(ctx, input.Org, start.UTC(), end.UTC(), input.PerOperation, input.Timezone)
	if err != nil {
		return nil, mapError(err)
	}
	return &UsageRangeOutput{Body: report}, nil
}

// CreditsInput identifies the organization.
type CreditsInput struct {
	OrgPath
}

// CreditsOutput is the organization's credit balances.
type CreditsOutput struct {
	Body struct {
		*models.PaymentsCustomer
		Available float64 `json:"available"`
	}
}

// GetCredits returns the organization's stacked credit balances and the
// total still spendable.
func (h *Handlers) GetCredits(ctx context.Context, input *CreditsInput) (*CreditsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	customer, err := h.services.Credit.GetCustomer(ctx, input.Org)
	if err != nil {
		return nil, mapError(err)
	}
	out := &CreditsOutput{}
	out.Body.PaymentsCustomer = customer
	out.Body.Available = customer.Available(time.Now())
	return out, nil
}
