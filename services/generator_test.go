package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"owner-statements-server/finance"
	"owner-statements-server/models"
)

// storeStub is an in-memory statementStore.
type storeStub struct {
	configs map[uint]finance.ListingConfig
	drafts  map[uint]*models.Statement

	mu      sync.Mutex
	created []*models.Statement
}

func (s *storeStub) ListingConfigs(propertyIDs []uint) (map[uint]finance.ListingConfig, error) {
	configs := make(map[uint]finance.ListingConfig)
	for _, id := range propertyIDs {
		if cfg, ok := s.configs[id]; ok {
			configs[id] = cfg
		}
	}
	return configs, nil
}

func (s *storeStub) LocalExpenses(propertyID uint, start, end time.Time) ([]models.Expense, error) {
	return nil, nil
}

func (s *storeStub) FindDraft(propertyID uint, start, end time.Time) (*models.Statement, error) {
	return s.drafts[propertyID], nil
}

func (s *storeStub) CreateStatement(row *models.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, row)
	row.ID = uint(len(s.created))
	return nil
}

// channelStub serves canned reservations per property and can fail selected
// properties.
type channelStub struct {
	reservations map[uint][]finance.Reservation
	failFor      map[uint]bool
}

func (c *channelStub) GetReservations(ctx context.Context, propertyID uint, start, end time.Time, calculationType string) ([]finance.Reservation, error) {
	if c.failFor[propertyID] {
		return nil, errors.New("upstream unavailable")
	}
	return c.reservations[propertyID], nil
}

func (c *channelStub) GetReservation(ctx context.Context, propertyID uint, reservationID string) (*finance.Reservation, error) {
	return nil, nil
}

func (c *channelStub) GetExpenses(ctx context.Context, propertyID uint, start, end time.Time) ([]finance.ExpenseRecord, error) {
	return nil, nil
}

func newTestGenerator(store statementStore, channel ChannelAPI) *Generator {
	return &Generator{
		store:   store,
		channel: channel,
		jobs:    map[string]*BulkJob{},
	}
}

func stubConfig(propertyID uint) finance.ListingConfig {
	return finance.ListingConfig{
		PropertyID:      propertyID,
		PMFeePercentage: decimal.NewFromInt(15),
	}
}

func stubStay(id string, propertyID uint) finance.Reservation {
	return finance.Reservation{
		ID:          id,
		PropertyID:  propertyID,
		GuestName:   "Guest " + id,
		CheckIn:     date(2025, 6, 3),
		CheckOut:    date(2025, 6, 6),
		Source:      "Airbnb",
		Status:      "confirmed",
		GrossAmount: decimal.NewFromInt(500),
	}
}

func weekInput() GenerateInput {
	return GenerateInput{
		WeekStartDate: date(2025, 6, 2),
		WeekEndDate:   date(2025, 6, 8),
	}
}

func TestGenerateInputValidate(t *testing.T) {
	valid := GenerateInput{
		PropertyID:    4,
		WeekStartDate: date(2025, 6, 2),
		WeekEndDate:   date(2025, 6, 8),
	}
	if err := valid.validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if valid.CalculationType != finance.CalculationCheckout {
		t.Fatalf("calculation type should default to checkout, got %q", valid.CalculationType)
	}

	inverted := valid
	inverted.WeekStartDate = date(2025, 6, 9)
	if err := inverted.validate(); err != ErrInvalidPeriod {
		t.Fatalf("inverted period: err = %v", err)
	}

	noProperty := GenerateInput{
		WeekStartDate: date(2025, 6, 2),
		WeekEndDate:   date(2025, 6, 8),
	}
	if err := noProperty.validate(); err == nil {
		t.Fatal("missing property accepted")
	}

	badMode := valid
	badMode.CalculationType = "weekly"
	if err := badMode.validate(); err == nil {
		t.Fatal("unknown calculation type accepted")
	}
}

func TestGenerateInputProperties(t *testing.T) {
	single := GenerateInput{PropertyID: 4}
	if got := single.properties(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("single property: %v", got)
	}

	combined := GenerateInput{PropertyID: 4, PropertyIDs: []uint{7, 9}}
	if got := combined.properties(); len(got) != 2 || got[0] != 7 {
		t.Fatalf("combined should prefer propertyIDs: %v", got)
	}
}

func TestGenerateReturnsExistingDraft(t *testing.T) {
	existing := &models.Statement{Status: finance.StatusDraft}
	existing.ID = 41
	store := &storeStub{
		configs: map[uint]finance.ListingConfig{4: stubConfig(4)},
		drafts:  map[uint]*models.Statement{4: existing},
	}
	g := newTestGenerator(store, &channelStub{})

	in := weekInput()
	in.PropertyID = 4
	row, err := g.Generate(context.Background(), in)
	if !errors.Is(err, ErrStatementExists) {
		t.Fatalf("err = %v, want ErrStatementExists", err)
	}
	if row == nil || row.ID != 41 {
		t.Fatalf("expected the existing draft back, got %+v", row)
	}
	if len(store.created) != 0 {
		t.Fatalf("duplicate draft must not be re-persisted, created %d rows", len(store.created))
	}
}

func TestBuildCombinedMergesDeterministically(t *testing.T) {
	store := &storeStub{
		configs: map[uint]finance.ListingConfig{1: stubConfig(1), 3: stubConfig(3)},
	}
	channel := &channelStub{
		reservations: map[uint][]finance.Reservation{
			1: {stubStay("r1", 1)},
			3: {stubStay("r3", 3)},
		},
	}
	g := newTestGenerator(store, channel)

	in := weekInput()
	in.PropertyIDs = []uint{3, 1}
	row, err := g.build(context.Background(), in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	st, err := row.ToEngine()
	if err != nil {
		t.Fatalf("ToEngine: %v", err)
	}
	if len(st.Reservations) != 2 {
		t.Fatalf("expected both properties' reservations, got %d", len(st.Reservations))
	}
	// merged in ascending property order regardless of request order
	if st.Reservations[0].PropertyID != 1 || st.Reservations[1].PropertyID != 3 {
		t.Fatalf("merge order: %d then %d", st.Reservations[0].PropertyID, st.Reservations[1].PropertyID)
	}
	if len(st.PropertyIDs) != 2 || st.PropertyIDs[0] != 3 {
		t.Fatalf("requested property list not preserved: %v", st.PropertyIDs)
	}
}

func TestBuildCombinedFailsWhenAnyPropertyFails(t *testing.T) {
	store := &storeStub{
		configs: map[uint]finance.ListingConfig{1: stubConfig(1), 2: stubConfig(2)},
	}
	channel := &channelStub{
		reservations: map[uint][]finance.Reservation{1: {stubStay("r1", 1)}},
		failFor:      map[uint]bool{2: true},
	}
	g := newTestGenerator(store, channel)

	in := weekInput()
	in.PropertyIDs = []uint{1, 2}
	if _, err := g.build(context.Background(), in); err == nil {
		t.Fatal("combined build must fail when one property cannot be fetched")
	}
}

func TestRunBulkIsolatesFailures(t *testing.T) {
	existing := &models.Statement{Status: finance.StatusDraft}
	existing.ID = 7
	store := &storeStub{
		configs: map[uint]finance.ListingConfig{
			1: stubConfig(1),
			2: stubConfig(2),
			3: stubConfig(3),
		},
		drafts: map[uint]*models.Statement{3: existing},
	}
	channel := &channelStub{
		reservations: map[uint][]finance.Reservation{
			1: {stubStay("r1", 1)},
			3: {stubStay("r3", 3)},
		},
		failFor: map[uint]bool{2: true},
	}
	g := newTestGenerator(store, channel)

	job := &BulkJob{ID: "j1", Status: "pending", Total: 3, Errors: []string{}}
	g.jobs[job.ID] = job
	g.runBulk(job, []uint{1, 2, 3}, weekInput())

	if job.Status != "done" {
		t.Fatalf("status = %q", job.Status)
	}
	if job.Processed != 3 {
		t.Fatalf("processed = %d", job.Processed)
	}
	if job.Created != 1 {
		t.Fatalf("created = %d", job.Created)
	}
	if job.Skipped != 1 {
		t.Fatalf("existing draft should be skipped, skipped = %d", job.Skipped)
	}
	if len(job.Errors) != 1 || !strings.Contains(job.Errors[0], "property 2") {
		t.Fatalf("failing property should be recorded without aborting the run: %v", job.Errors)
	}
	if len(job.StatementIDs) != 1 {
		t.Fatalf("statementIDs = %v", job.StatementIDs)
	}
	if len(store.created) != 1 {
		t.Fatalf("persisted rows = %d", len(store.created))
	}
}

func TestBulkStatusUnknownJob(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	if _, ok := g.BulkStatus("nope"); ok {
		t.Fatal("unknown job reported as found")
	}
}

func TestBulkStatusSnapshotIsDetached(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	job := &BulkJob{
		ID:        "j1",
		Status:    "processing",
		Errors:    []string{"one"},
		CreatedAt: time.Now(),
	}
	g.jobs[job.ID] = job

	snap, ok := g.BulkStatus("j1")
	if !ok {
		t.Fatal("job not found")
	}
	snap.Errors[0] = "mutated"
	snap.Status = "done"

	if job.Errors[0] != "one" || job.Status != "processing" {
		t.Fatal("snapshot shares state with the live job")
	}
}
