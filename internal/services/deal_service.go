package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/numeric"
	"github.com/stwalsh4118/dealdesk/internal/repository"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
	"github.com/stwalsh4118/dealdesk/internal/valuation"
)

// List limits for ListDeals.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DealSummary is a deal header with its derived metrics.
type DealSummary struct {
	Deal        models.Deal       `json:"deal"`
	Assumptions map[string]any    `json:"assumptions,omitempty"`
	Metrics     valuation.Metrics `json:"metrics"`
}

// DealService is the entry point for reading and writing deals.
type DealService interface {
	// SaveTab writes one tab of a deal, retrying transient storage failures.
	// Returns the dimension record id, or the deal id for the property tab.
	SaveTab(ctx context.Context, tab string, dealID int64, fields map[string]any) (int64, error)

	// LoadDealAssumptions returns the deal's flattened assumptions.
	LoadDealAssumptions(ctx context.Context, dealID int64) (map[string]any, error)

	// CreateDeal inserts a deal header and returns its id. Status defaults to Draft.
	CreateDeal(ctx context.Context, deal models.NewDeal) (int64, error)

	// GetDealSummary returns a deal with its assumptions and metrics.
	GetDealSummary(ctx context.Context, dealID int64) (*DealSummary, error)

	// ListDeals returns the most recently updated deals with their metrics.
	ListDeals(ctx context.Context, limit int) ([]DealSummary, error)
}

// ServiceOptions tunes the DealService.
type ServiceOptions struct {
	// MaxRetries is how many times a transient save failure is retried.
	MaxRetries int
	// RetryInterval is the first backoff delay. Zero selects 100ms.
	RetryInterval time.Duration
	Recorder      *telemetry.Recorder
}

type dealService struct {
	writer TabWriter
	reader AssumptionReader
	deals  repository.DealRepository
	db     sqlx.QueryerContext
	policy *numeric.Policy
	log    *logger.Logger
	opts   ServiceOptions
}

// NewDealService creates a DealService. Deal headers are created and listed
// through deals on db; tab writes and assumption reads are delegated.
func NewDealService(writer TabWriter, reader AssumptionReader, deals repository.DealRepository, db sqlx.QueryerContext, policy *numeric.Policy, log *logger.Logger, opts ServiceOptions) DealService {
	if policy == nil {
		policy = numeric.NewPolicy(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	return &dealService{
		writer: writer,
		reader: reader,
		deals:  deals,
		db:     db,
		policy: policy,
		log:    log,
		opts:   opts,
	}
}

func (s *dealService) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.MaxInterval = 20 * s.opts.RetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxRetries)), ctx)
}

func (s *dealService) SaveTab(ctx context.Context, tab string, dealID int64, fields map[string]any) (int64, error) {
	label := tab
	if t, ok := models.ParseTab(tab); ok {
		label = string(t.Kind)
	}

	var (
		id      int64
		attempt int
	)
	operation := func() error {
		attempt++
		var err error
		id, err = s.writer.SaveTab(ctx, tab, dealID, fields)
		if err == nil {
			return nil
		}
		if !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		s.log.Warn("Transient failure saving tab", map[string]interface{}{
			"tab":     label,
			"deal_id": dealID,
			"attempt": attempt,
			"error":   err.Error(),
		})
		s.opts.Recorder.TabSave(label, telemetry.OutcomeRetry, 0)
		return err
	}

	if err := backoff.Retry(operation, s.newBackOff(ctx)); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *dealService) LoadDealAssumptions(ctx context.Context, dealID int64) (map[string]any, error) {
	return s.reader.LoadDealAssumptions(ctx, dealID)
}

func (s *dealService) CreateDeal(ctx context.Context, deal models.NewDeal) (int64, error) {
	fields := make(map[string]any, len(deal.Fields)+1)
	for k, v := range deal.Fields {
		fields[k] = v
	}
	if status, ok := fields["status"]; !ok || status == nil || status == "" {
		fields["status"] = models.StatusDraft
	}

	header := models.MustTab(models.TabProperty)
	values, err := s.policy.Apply(header, fields)
	if err != nil {
		return 0, err
	}
	if !hasValue(values, "deal_name") {
		return 0, &apperrors.ValidationError{Field: "deal_name", Reason: "deal_name is required"}
	}

	actor := deal.Actor
	if actor == "" {
		actor = ActorFrom(ctx)
	}

	id, err := s.deals.Create(ctx, s.db, values, actor)
	if err != nil {
		s.log.Error("Failed to create deal", err, nil)
		return 0, err
	}

	s.log.Info("Deal created", map[string]interface{}{
		"deal_id": id,
		"actor":   actor,
	})
	return id, nil
}

func hasValue(values []numeric.Value, name string) bool {
	for _, v := range values {
		if v.Field.Name == name {
			s, ok := v.Value.(string)
			return ok && strings.TrimSpace(s) != ""
		}
	}
	return false
}

func (s *dealService) GetDealSummary(ctx context.Context, dealID int64) (*DealSummary, error) {
	record, err := s.reader.LoadDealAssumptions(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return &DealSummary{
		Deal:        models.DealFromRecord(record),
		Assumptions: record,
		Metrics:     valuation.Compute(record),
	}, nil
}

func (s *dealService) ListDeals(ctx context.Context, limit int) ([]DealSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	headers, err := s.deals.List(ctx, s.db, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}

	summaries := make([]DealSummary, 0, len(headers))
	for _, header := range headers {
		summary := DealSummary{Deal: models.DealFromRecord(header)}
		record, err := s.reader.LoadDealAssumptions(ctx, summary.Deal.ID)
		if err != nil {
			// A deal removed since the listing is skipped; anything else fails the list.
			if apperrors.Code(err) == apperrors.CodeDealNotFound {
				continue
			}
			return nil, err
		}
		summary.Metrics = valuation.Compute(record)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
