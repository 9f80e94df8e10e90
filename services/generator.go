package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"owner-statements-server/finance"
	"owner-statements-server/models"
)

var (
	ErrUnknownListing  = errors.New("listing not found")
	ErrInvalidPeriod   = errors.New("statement start date must not be after end date")
	ErrStatementExists = errors.New("a draft statement for this property and period already exists")
)

// bulkBatchSize bounds how many properties a bulk run computes concurrently.
const bulkBatchSize = 5

// statementStore is the persistence surface statement generation needs,
// narrowed the same way ChannelAPI narrows the booking-channel side. gorm
// backs it in production.
type statementStore interface {
	ListingConfigs(propertyIDs []uint) (map[uint]finance.ListingConfig, error)
	LocalExpenses(propertyID uint, start, end time.Time) ([]models.Expense, error)
	FindDraft(propertyID uint, start, end time.Time) (*models.Statement, error)
	CreateStatement(row *models.Statement) error
}

// Generator builds owner statements. All money math is delegated to the
// finance package; this service only fetches inputs, resolves rules from the
// listings table and persists results.
type Generator struct {
	store   statementStore
	channel ChannelAPI
	cancels *CancelledCountCache

	jobsMu sync.Mutex
	jobs   map[string]*BulkJob
}

func NewGenerator(db *gorm.DB, channel ChannelAPI, cancels *CancelledCountCache) *Generator {
	return &Generator{
		store:   &gormStatementStore{db: db},
		channel: channel,
		cancels: cancels,
		jobs:    map[string]*BulkJob{},
	}
}

type gormStatementStore struct {
	db *gorm.DB
}

func (s *gormStatementStore) ListingConfigs(propertyIDs []uint) (map[uint]finance.ListingConfig, error) {
	var listings []models.Listing
	if err := s.db.Where("id IN ?", propertyIDs).Find(&listings).Error; err != nil {
		return nil, err
	}
	configs := make(map[uint]finance.ListingConfig, len(listings))
	for i := range listings {
		configs[listings[i].ID] = listings[i].FinancialConfig()
	}
	return configs, nil
}

func (s *gormStatementStore) LocalExpenses(propertyID uint, start, end time.Time) ([]models.Expense, error) {
	var local []models.Expense
	err := s.db.
		Where("(property_id = ? OR property_id IS NULL) AND date >= ? AND date <= ?", propertyID, start, end).
		Order("date, id").
		Find(&local).Error
	return local, err
}

func (s *gormStatementStore) FindDraft(propertyID uint, start, end time.Time) (*models.Statement, error) {
	var existing models.Statement
	err := s.db.
		Where("property_id = ? AND week_start_date = ? AND week_end_date = ? AND status = ?",
			propertyID, start, end, finance.StatusDraft).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *gormStatementStore) CreateStatement(row *models.Statement) error {
	return s.db.Create(row).Error
}

// GenerateInput describes one statement to build.
type GenerateInput struct {
	PropertyID      uint
	PropertyIDs     []uint // combined statement when len > 1
	WeekStartDate   time.Time
	WeekEndDate     time.Time
	CalculationType string
}

func (in *GenerateInput) properties() []uint {
	if len(in.PropertyIDs) > 0 {
		return in.PropertyIDs
	}
	return []uint{in.PropertyID}
}

func (in *GenerateInput) validate() error {
	if in.WeekStartDate.After(in.WeekEndDate) {
		return ErrInvalidPeriod
	}
	if in.CalculationType == "" {
		in.CalculationType = finance.CalculationCheckout
	}
	if in.CalculationType != finance.CalculationCheckout && in.CalculationType != finance.CalculationCalendar {
		return fmt.Errorf("unknown calculationType %q", in.CalculationType)
	}
	if len(in.properties()) == 0 || in.properties()[0] == 0 {
		return errors.New("propertyID is required")
	}
	return nil
}

type propertyData struct {
	propertyID   uint
	reservations []finance.Reservation
	expenses     []finance.ExpenseRecord
}

// fetchProperty pulls one property's reservations and expenses: the channel
// manager plus locally recorded expense rows. Local rows with no property id
// are treated as pre-filtered for this property by whoever recorded them.
func (g *Generator) fetchProperty(ctx context.Context, propertyID uint, in GenerateInput) (propertyData, error) {
	data := propertyData{propertyID: propertyID}

	reservations, err := g.channel.GetReservations(ctx, propertyID, in.WeekStartDate, in.WeekEndDate, in.CalculationType)
	if err != nil {
		return data, fmt.Errorf("property %d: fetch reservations: %w", propertyID, err)
	}
	data.reservations = reservations

	expenses, err := g.channel.GetExpenses(ctx, propertyID, in.WeekStartDate, in.WeekEndDate)
	if err != nil {
		return data, fmt.Errorf("property %d: fetch expenses: %w", propertyID, err)
	}
	data.expenses = expenses

	local, err := g.store.LocalExpenses(propertyID, in.WeekStartDate, in.WeekEndDate)
	if err != nil {
		return data, fmt.Errorf("property %d: load local expenses: %w", propertyID, err)
	}
	for _, e := range local {
		data.expenses = append(data.expenses, finance.ExpenseRecord{
			ID:          e.ID,
			PropertyID:  propertyID,
			Date:        e.Date,
			Description: e.Description,
			Category:    e.Category,
			Amount:      e.Amount,
			Type:        e.Type,
		})
	}
	return data, nil
}

// Generate builds and persists one statement. Re-running for a property and
// period that already has a draft returns ErrStatementExists along with the
// existing row, which is what makes at-least-once bulk runs idempotent.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*models.Statement, error) {
	row, err := g.build(ctx, in)
	if err != nil {
		return row, err
	}
	if err := g.store.CreateStatement(row); err != nil {
		return nil, err
	}
	return row, nil
}

// build computes a statement without persisting it, so bulk runs can fan the
// computation out and still insert rows one by one.
func (g *Generator) build(ctx context.Context, in GenerateInput) (*models.Statement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	propertyIDs := in.properties()

	// Missing listings are simply absent from the map; the resolver
	// substitutes defaults for combined statements, single-property callers
	// treat absence as a hard failure.
	configs, err := g.store.ListingConfigs(propertyIDs)
	if err != nil {
		return nil, err
	}
	if len(propertyIDs) == 1 {
		if _, ok := configs[propertyIDs[0]]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownListing, propertyIDs[0])
		}
	}

	if existing, err := g.findDuplicateDraft(propertyIDs, in); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, ErrStatementExists
	}

	// Fetching is independent per property and read-only, so combined
	// statements fan out. The merge below stays strictly deterministic.
	results := make([]propertyData, len(propertyIDs))
	errs := make([]error, len(propertyIDs))
	var wg sync.WaitGroup
	for i, propertyID := range propertyIDs {
		wg.Add(1)
		go func(i int, propertyID uint) {
			defer wg.Done()
			results[i], errs[i] = g.fetchProperty(ctx, propertyID, in)
		}(i, propertyID)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].propertyID < results[j].propertyID })

	st := &finance.Statement{
		PropertyIDs:     propertyIDs,
		WeekStartDate:   in.WeekStartDate,
		WeekEndDate:     in.WeekEndDate,
		CalculationType: in.CalculationType,
		Status:          finance.StatusDraft,
	}
	var records []finance.ExpenseRecord
	for _, data := range results {
		st.Reservations = append(st.Reservations, data.reservations...)
		records = append(records, data.expenses...)
	}

	rules := finance.ResolveAll(configs, propertyIDs, in.WeekEndDate)
	finance.Assemble(st, records, rules)

	row := &models.Statement{
		WeekStartDate:   in.WeekStartDate,
		WeekEndDate:     in.WeekEndDate,
		CalculationType: in.CalculationType,
	}
	if err := row.ApplyEngine(st); err != nil {
		return nil, err
	}
	return row, nil
}

func (g *Generator) findDuplicateDraft(propertyIDs []uint, in GenerateInput) (*models.Statement, error) {
	if len(propertyIDs) != 1 {
		return nil, nil
	}
	return g.store.FindDraft(propertyIDs[0], in.WeekStartDate, in.WeekEndDate)
}

// CancelledCount reports how many of the period's fetched reservations were
// cancelled, through the injected TTL cache.
func (g *Generator) CancelledCount(ctx context.Context, propertyID uint, start, end time.Time) (int, error) {
	return g.cancels.Count(ctx, propertyID, start, end, func() (int, error) {
		reservations, err := g.channel.GetReservations(ctx, propertyID, start, end, finance.CalculationCheckout)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, r := range reservations {
			if r.Status == "cancelled" {
				n++
			}
		}
		return n, nil
	})
}

// FetchReservation looks up one reservation on the channel API so it can be
// attached to an existing statement.
func (g *Generator) FetchReservation(ctx context.Context, propertyID uint, reservationID string) (*finance.Reservation, error) {
	return g.channel.GetReservation(ctx, propertyID, reservationID)
}

// BulkJob tracks a generate-everything run. Progress moves in discrete
// checkpoints; per-property failures land in Errors without aborting the
// batch.
type BulkJob struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"` // pending, processing, done
	Total        int       `json:"total"`
	Processed    int       `json:"processed"`
	Created      int       `json:"created"`
	Skipped      int       `json:"skipped"`
	Errors       []string  `json:"errors"`
	StatementIDs []uint    `json:"statementIDs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StartBulk launches a background run over every given property. Statement
// rows are inserted sequentially after each batch finishes computing, so ID
// assignment never races; persistence is at-least-once and duplicate drafts
// are skipped rather than re-created.
func (g *Generator) StartBulk(propertyIDs []uint, in GenerateInput) *BulkJob {
	job := &BulkJob{
		ID:        time.Now().Format("20060102150405.000000"),
		Status:    "pending",
		Total:     len(propertyIDs),
		Errors:    []string{},
		CreatedAt: time.Now(),
	}
	g.jobsMu.Lock()
	g.jobs[job.ID] = job
	g.jobsMu.Unlock()

	go g.runBulk(job, propertyIDs, in)
	return job
}

func (g *Generator) runBulk(job *BulkJob, propertyIDs []uint, in GenerateInput) {
	ctx := context.Background()

	g.jobsMu.Lock()
	job.Status = "processing"
	g.jobsMu.Unlock()

	for start := 0; start < len(propertyIDs); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(propertyIDs) {
			end = len(propertyIDs)
		}
		batch := propertyIDs[start:end]

		type outcome struct {
			propertyID uint
			statement  *models.Statement
			err        error
		}
		outcomes := make([]outcome, len(batch))

		// Computation fans out per property; persistence waits for the
		// whole batch so statement IDs are assigned by one writer in order.
		var wg sync.WaitGroup
		for i, propertyID := range batch {
			wg.Add(1)
			go func(i int, propertyID uint) {
				defer wg.Done()
				batchIn := in
				batchIn.PropertyID = propertyID
				batchIn.PropertyIDs = nil
				st, err := g.build(ctx, batchIn)
				outcomes[i] = outcome{propertyID: propertyID, statement: st, err: err}
			}(i, propertyID)
		}
		wg.Wait()

		for i := range outcomes {
			if outcomes[i].err == nil {
				if err := g.store.CreateStatement(outcomes[i].statement); err != nil {
					outcomes[i].err = err
				}
			}
		}

		// Checkpoint after the whole batch lands.
		g.jobsMu.Lock()
		for _, o := range outcomes {
			job.Processed++
			switch {
			case errors.Is(o.err, ErrStatementExists):
				job.Skipped++
			case o.err != nil:
				job.Errors = append(job.Errors, fmt.Sprintf("property %d: %v", o.propertyID, o.err))
			default:
				job.Created++
				job.StatementIDs = append(job.StatementIDs, o.statement.ID)
			}
		}
		g.jobsMu.Unlock()
	}

	g.jobsMu.Lock()
	job.Status = "done"
	g.jobsMu.Unlock()
	log.Printf("bulk statement run %s: %d created, %d skipped, %d errors", job.ID, job.Created, job.Skipped, len(job.Errors))
}

// BulkStatus returns a snapshot of the job for pollers.
func (g *Generator) BulkStatus(id string) (BulkJob, bool) {
	g.jobsMu.Lock()
	defer g.jobsMu.Unlock()
	job, ok := g.jobs[id]
	if !ok {
		return BulkJob{}, false
	}
	snapshot := *job
	snapshot.Errors = append([]string(nil), job.Errors...)
	snapshot.StatementIDs = append([]uint(nil), job.StatementIDs...)
	return snapshot, true
}
