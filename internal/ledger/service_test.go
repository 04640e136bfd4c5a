package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-issuance/internal/errs"
	"ms-issuance/internal/models"
)

// MockStore is a mutex-guarded in-memory implementation of the Store
// interface so concurrent scans can be exercised without a database.
type MockStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	failOn  string
}

func NewMockStore() *MockStore {
	return &MockStore{tickets: make(map[string]*models.Ticket)}
}

func (m *MockStore) add(ticket models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := ticket
	m.tickets[ticket.Code] = &t
}

func (m *MockStore) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "GetTicketByCode" {
		return nil, errors.New("store down")
	}
	ticket, ok := m.tickets[code]
	if !ok {
		return nil, nil
	}
	copied := *ticket
	return &copied, nil
}

func (m *MockStore) MarkScanned(ctx context.Context, code string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "MarkScanned" {
		return false, errors.New("store down")
	}
	ticket, ok := m.tickets[code]
	if !ok || ticket.Status != models.TicketStatusIssued {
		return false, nil
	}
	ticket.Status = models.TicketStatusScanned
	ticket.ScannedAt = at
	return true, nil
}

func (m *MockStore) VoidTicket(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[code]
	if !ok || ticket.Status != models.TicketStatusIssued {
		return false, nil
	}
	ticket.Status = models.TicketStatusVoid
	return true, nil
}

func (m *MockStore) CountIssued(ctx context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.tickets {
		if f.EventID == "" || t.EventID == f.EventID {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) CountScanned(ctx context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.tickets {
		if (f.EventID == "" || t.EventID == f.EventID) && t.Status == models.TicketStatusScanned {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) BreakdownBy(ctx context.Context, column string, f Filter) ([]CountBreakdown, error) {
	return nil, nil
}

func TestScanAccepted(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "OK1", EventID: "event-1", Status: models.TicketStatusIssued})
	svc := NewService(store)

	result, err := svc.Scan(context.Background(), "OK1")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Outcome != OutcomeAccepted {
		t.Errorf("Outcome is %q, want accepted", result.Outcome)
	}
	if result.Ticket == nil || result.Ticket.Status != models.TicketStatusScanned {
		t.Error("Result does not carry the scanned ticket")
	}
}

func TestScanIdempotence(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "TWICE", EventID: "event-1", Status: models.TicketStatusIssued})
	svc := NewService(store)

	first, err := svc.Scan(context.Background(), "TWICE")
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}
	if first.Outcome != OutcomeAccepted {
		t.Fatalf("First scan outcome is %q", first.Outcome)
	}

	second, err := svc.Scan(context.Background(), "TWICE")
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if second.Outcome != OutcomeAlreadyUsed {
		t.Errorf("Second scan outcome is %q, want already-used", second.Outcome)
	}
	if second.Ticket.Status != models.TicketStatusScanned {
		t.Error("Ticket left the scanned state")
	}
}

func TestScanUnknownCode(t *testing.T) {
	svc := NewService(NewMockStore())

	result, err := svc.Scan(context.Background(), "GHOST")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Outcome != OutcomeNotFound {
		t.Errorf("Outcome is %q, want not-found", result.Outcome)
	}
	if result.Ticket != nil {
		t.Error("Not-found result carries a ticket")
	}
}

func TestScanEmptyCode(t *testing.T) {
	svc := NewService(NewMockStore())

	_, err := svc.Scan(context.Background(), "")
	if err == nil {
		t.Fatal("Scan of empty code should fail")
	}
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Scan returned %T, want *errs.ValidationError", err)
	}
}

func TestScanConcurrentSingleWinner(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "RACE", EventID: "event-1", Status: models.TicketStatusIssued})
	svc := NewService(store)

	const scanners = 16
	var wg sync.WaitGroup
	outcomes := make(chan string, scanners)

	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Scan(context.Background(), "RACE")
			if err != nil {
				t.Errorf("Concurrent scan errored: %v", err)
				return
			}
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	accepted := 0
	for outcome := range outcomes {
		if outcome == OutcomeAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("%d scanners were accepted, want exactly 1", accepted)
	}
}

func TestScanStorageFailure(t *testing.T) {
	store := NewMockStore()
	store.failOn = "MarkScanned"
	svc := NewService(store)

	_, err := svc.Scan(context.Background(), "ANY")
	if err == nil {
		t.Fatal("Scan should surface storage failures")
	}
	var serr *errs.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("Scan returned %T, want *errs.StorageError", err)
	}
}

func TestVoidThenScan(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "VOIDME", EventID: "event-1", Status: models.TicketStatusIssued})
	svc := NewService(store)

	if err := svc.Void(context.Background(), "VOIDME"); err != nil {
		t.Fatalf("Void failed: %v", err)
	}

	result, err := svc.Scan(context.Background(), "VOIDME")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Outcome != OutcomeAlreadyUsed {
		t.Errorf("Scan of void ticket returned %q, want already-used", result.Outcome)
	}
}

func TestVoidScannedTicketRejected(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "SPENT", EventID: "event-1", Status: models.TicketStatusScanned})
	svc := NewService(store)

	if err := svc.Void(context.Background(), "SPENT"); err == nil {
		t.Error("Void of a scanned ticket should fail")
	}
}

func TestGetAnalyticsScanRate(t *testing.T) {
	store := NewMockStore()
	store.add(models.Ticket{Code: "S1", EventID: "event-1", Status: models.TicketStatusScanned})
	store.add(models.Ticket{Code: "S2", EventID: "event-1", Status: models.TicketStatusIssued})
	store.add(models.Ticket{Code: "S3", EventID: "event-1", Status: models.TicketStatusIssued})
	store.add(models.Ticket{Code: "S4", EventID: "event-1", Status: models.TicketStatusScanned})
	svc := NewService(store)

	analytics, err := svc.GetAnalytics(context.Background(), Filter{EventID: "event-1"})
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if analytics.TotalIssued != 4 {
		t.Errorf("TotalIssued is %d, want 4", analytics.TotalIssued)
	}
	if analytics.TotalScanned != 2 {
		t.Errorf("TotalScanned is %d, want 2", analytics.TotalScanned)
	}
	if analytics.ScanRate != 0.5 {
		t.Errorf("ScanRate is %f, want 0.5", analytics.ScanRate)
	}
}

func TestGetAnalyticsEmptyLedger(t *testing.T) {
	svc := NewService(NewMockStore())

	analytics, err := svc.GetAnalytics(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if analytics.ScanRate != 0 {
		t.Errorf("ScanRate on empty ledger is %f", analytics.ScanRate)
	}
}
