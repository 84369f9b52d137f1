package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// SPUPriceUSD is the USD value of one SPU, used to convert provider costs
// into credits.
const SPUPriceUSD = 0.01

// Per-operation SPU costs that do not depend on size.
const (
	SPUCostTelemetryRecord = 1.0
	SPUCostClaudeLogBatch  = 1.0
	SPUCostClaudeHook      = 0.1
)

// SPUCreditError reports insufficient credits for an operation.
type SPUCreditError struct {
	Required  float64
	Available float64
}

func (e *SPUCreditError) Error() string {
	return fmt.Sprintf("insufficient credits: required %.2f SPUs, available %.2f", e.Required, e.Available)
}

// IsCreditError reports whether err is a credit exhaustion error.
func IsCreditError(err error) bool {
	var ce *SPUCreditError
	return errors.As(err, &ce)
}

// OCRCost returns the SPU cost of an OCR pass.
func OCRCost(nPages int) float64 {
	if nPages < 1 {
		nPages = 1
	}
	return float64(nPages)
}

// LLMCost converts a provider USD cost into whole SPUs, minimum 1.
func LLMCost(usd float64) float64 {
	spus := math.Ceil(usd / SPUPriceUSD)
	if spus < 1 {
		spus = 1
	}
	return spus
}

// CreditService is the SPU credit ledger: advisory pre-checks, atomic
// debits with usage records, and usage reporting.
type CreditService struct {
	logger   *slog.Logger
	payments repository.PaymentsRepository
}

// NewCreditService creates a new credit service.
func NewCreditService(logger *slog.Logger, payments repository.PaymentsRepository) *CreditService {
	return &CreditService{logger: logger, payments: payments}
}

// CheckSPU verifies the org can afford the given SPUs. Advisory: the balance
// is not locked, the real debit happens in RecordSPU after the work is done.
func (s *CreditService) CheckSPU(ctx context.Context, orgID string, required float64) error {
	customer, err := s.payments.GetCustomer(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return &SPUCreditError{Required: required, Available: 0}
	}
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}
	available := customer.Available(time.Now())
	if available < required {
		return &SPUCreditError{Required: required, Available: available}
	}
	return nil
}

// RecordSPU appends a usage record and debits the stacked balances
// (subscription, then purchased, then granted) in a single transaction.
func (s *CreditService) RecordSPU(ctx context.Context, orgID string, spus float64, operation models.UsageOperation, source string) error {
	if !models.ValidOperation(operation) {
		return fmt.Errorf("unknown usage operation %q", operation)
	}
	record := &models.UsageRecord{
		ID:             models.NewULID(),
		OrganizationID: orgID,
		SPUs:           spus,
		Operation:      operation,
		Source:         source,
		Timestamp:      time.Now().UTC(),
	}
	return s.payments.Debit(ctx, record)
}

// UsageRange aggregates usage records by calendar day in the given IANA
// timezone, between start (inclusive) and end (exclusive).
func (s *CreditService) UsageRange(ctx context.Context, orgID string, start, end time.Time, perOperation bool, timezone string) (*models.UsageReport, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}

	records, err := s.payments.UsageInRange(ctx, orgID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}

	type bucketKey struct {
		date string
		op   models.UsageOperation
	}
	buckets := make(map[bucketKey]float64)
	report := &models.UsageReport{}

	for _, rec := range records {
		key := bucketKey{date: rec.Timestamp.In(loc).Format("2006-01-02")}
		if perOperation {
			key.op = rec.Operation
		}
		buckets[key] += rec.SPUs
		report.TotalSPUs += rec.SPUs
	}

	for key, spus := range buckets {
		point := models.UsageDataPoint{Date: key.date, SPUs: spus}
		if perOperation {
			point.Operation = key.op
		}
		report.DataPoints = append(report.DataPoints, point)
	}
	sort.Slice(report.DataPoints, func(i, j int) bool {
		a, b := report.DataPoints[i], report.DataPoints[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Operation < b.Operation
	})

	return report, nil
}

// GetCustomer returns the org's credit balances, creating a zero-balance
// customer view when none exists yet.
func (s *CreditService) GetCustomer(ctx context.Context, orgID string) (*models.PaymentsCustomer, error) {
	customer, err := s.payments.GetCustomer(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.PaymentsCustomer{OrganizationID: orgID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return customer, nil
}
