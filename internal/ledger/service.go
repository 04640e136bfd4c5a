package ledger

import (
	"context"
	"fmt"
	"time"

	"ms-issuance/internal/errs"
	"ms-issuance/internal/logger"
	"ms-issuance/internal/models"
)

const (
	OutcomeAccepted    = "accepted"
	OutcomeAlreadyUsed = "already-used"
	OutcomeNotFound    = "not-found"
)

// ScanResult is what a gate scanner gets back for a code.
type ScanResult struct {
	Outcome string         `json:"outcome"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
}

// Store is the ledger persistence surface the service needs.
type Store interface {
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	MarkScanned(ctx context.Context, code string, at time.Time) (bool, error)
	VoidTicket(ctx context.Context, code string) (bool, error)
	CountIssued(ctx context.Context, f Filter) (int, error)
	CountScanned(ctx context.Context, f Filter) (int, error)
	BreakdownBy(ctx context.Context, column string, f Filter) ([]CountBreakdown, error)
}

// EventPublisher pushes accepted scans onto the bus for downstream dashboards.
type EventPublisher interface {
	PublishTicketScanned(ticket models.Ticket) error
}

// Service answers scans and aggregate queries over the ledger.
type Service struct {
	Store    Store
	Locks    *ScanLocks
	Producer EventPublisher
	Logger   *logger.Logger
}

func NewService(store Store) *Service {
	return &Service{Store: store}
}

// Scan resolves a code to exactly one outcome. The conditional update in the
// store is the single atomic check-and-set; everything around it is reporting.
func (s *Service) Scan(ctx context.Context, code string) (*ScanResult, error) {
	if code == "" {
		return nil, &errs.ValidationError{Field: "code", Reason: "code is required"}
	}

	if s.Locks != nil {
		if ok, err := s.Locks.Acquire(ctx, code); err == nil && ok {
			defer s.Locks.Release(ctx, code)
		}
		// Lock contention or a Redis error never blocks a scan; the
		// database update stays authoritative.
	}

	accepted, err := s.Store.MarkScanned(ctx, code, time.Now())
	if err != nil {
		return nil, &errs.StorageError{Op: "mark_scanned", Attempts: 1, Err: err}
	}

	ticket, err := s.Store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, &errs.StorageError{Op: "get_ticket", Attempts: 1, Err: err}
	}

	if accepted {
		if s.Logger != nil {
			s.Logger.LogScan(OutcomeAccepted, code, "ticket admitted")
		}
		if s.Producer != nil && ticket != nil {
			if err := s.Producer.PublishTicketScanned(*ticket); err != nil && s.Logger != nil {
				s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish scan event for %s: %v", code, err))
			}
		}
		return &ScanResult{Outcome: OutcomeAccepted, Ticket: ticket}, nil
	}

	if ticket == nil {
		if s.Logger != nil {
			s.Logger.LogScan(OutcomeNotFound, code, "unknown code")
		}
		return &ScanResult{Outcome: OutcomeNotFound}, nil
	}

	// Already scanned or voided; either way the permit is spent.
	if s.Logger != nil {
		s.Logger.LogScan(OutcomeAlreadyUsed, code, "ticket already used")
	}
	return &ScanResult{Outcome: OutcomeAlreadyUsed, Ticket: ticket}, nil
}

// Void retires an issued ticket so it can no longer be scanned.
func (s *Service) Void(ctx context.Context, code string) error {
	if code == "" {
		return &errs.ValidationError{Field: "code", Reason: "code is required"}
	}
	ok, err := s.Store.VoidTicket(ctx, code)
	if err != nil {
		return &errs.StorageError{Op: "void_ticket", Attempts: 1, Err: err}
	}
	if !ok {
		return &errs.ValidationError{Field: "code", Reason: "ticket is not in issued state"}
	}
	return nil
}

// Analytics is the aggregate view the dashboards poll.
type Analytics struct {
	TotalIssued         int              `json:"total_issued"`
	TotalScanned        int              `json:"total_scanned"`
	ScanRate            float64          `json:"scan_rate"`
	BreakdownByType     []CountBreakdown `json:"breakdown_by_type"`
	BreakdownByTemplate []CountBreakdown `json:"breakdown_by_template"`
	BreakdownByCategory []CountBreakdown `json:"breakdown_by_category"`
}

// GetAnalytics computes read-only projections over the ledger.
func (s *Service) GetAnalytics(ctx context.Context, f Filter) (*Analytics, error) {
	issued, err := s.Store.CountIssued(ctx, f)
	if err != nil {
		return nil, err
	}
	scanned, err := s.Store.CountScanned(ctx, f)
	if err != nil {
		return nil, err
	}

	byType, err := s.Store.BreakdownBy(ctx, "ticket_type", f)
	if err != nil {
		return nil, err
	}
	byTemplate, err := s.Store.BreakdownBy(ctx, "template_id", f)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.Store.BreakdownBy(ctx, "category", f)
	if err != nil {
		return nil, err
	}

	out := &Analytics{
		TotalIssued:         issued,
		TotalScanned:        scanned,
		BreakdownByType:     byType,
		BreakdownByTemplate: byTemplate,
		BreakdownByCategory: byCategory,
	}
	if issued > 0 {
		out.ScanRate = float64(scanned) / float64(issued)
	}
	return out, nil
}
