package finance

import (
	"errors"
	"testing"
)

func draftStatement(t *testing.T) (*Statement, map[uint]ResolvedRules) {
	t.Helper()
	rules := map[uint]ResolvedRules{1: baseRules(10)}
	st := newTestStatement(CalculationCheckout,
		stay("r1", date(2025, 3, 3), date(2025, 3, 7), "1000"))
	Assemble(st, []ExpenseRecord{
		{ID: 5, PropertyID: 1, Date: date(2025, 3, 4), Description: "Lightbulbs", Category: "repairs", Amount: dec("40"), Type: ItemExpense},
	}, rules)
	return st, rules
}

func TestHideAndShowReaggregate(t *testing.T) {
	st, rules := draftStatement(t)
	m := NewMutator(st, rules)

	var expenseID string
	for _, item := range st.Items {
		if item.Type == ItemExpense {
			expenseID = item.ID
		}
	}

	before := st.OwnerPayout
	if err := m.HideItem(expenseID, HiddenManual); err != nil {
		t.Fatal(err)
	}
	if !st.OwnerPayout.Equal(before.Add(dec("40"))) {
		t.Fatalf("hiding a 40 expense: payout %s -> %s, want +40", before, st.OwnerPayout)
	}
	if item := st.findItem(expenseID); !item.Hidden || item.HiddenReason != HiddenManual {
		t.Fatal("item must be hidden with its reason, never deleted")
	}

	if err := m.ShowItem(expenseID); err != nil {
		t.Fatal(err)
	}
	if !st.OwnerPayout.Equal(before) {
		t.Fatalf("showing again: payout = %s, want %s", st.OwnerPayout, before)
	}
}

func TestEditItemRevalidatesAndReaggregates(t *testing.T) {
	st, rules := draftStatement(t)
	m := NewMutator(st, rules)

	var expenseID, revenueID string
	for _, item := range st.Items {
		switch item.Type {
		case ItemExpense:
			expenseID = item.ID
		case ItemRevenue:
			revenueID = item.ID
		}
	}

	amount := dec("75")
	if err := m.EditItem(expenseID, ItemEdit{Amount: &amount}); err != nil {
		t.Fatal(err)
	}
	if !st.TotalExpenses.Equal(dec("75")) {
		t.Fatalf("totalExpenses = %s after edit, want 75", st.TotalExpenses)
	}

	if err := m.EditItem(revenueID, ItemEdit{Amount: &amount}); err == nil {
		t.Fatal("revenue lines are derived; editing one must be rejected")
	}

	negative := dec("-5")
	if err := m.EditItem(expenseID, ItemEdit{Amount: &negative}); err == nil {
		t.Fatal("negative amounts must be rejected; type encodes the sign")
	}
}

func TestInsertCustomReservation(t *testing.T) {
	st, rules := draftStatement(t)
	m := NewMutator(st, rules)

	fee := dec("50")
	in := CustomReservationInput{
		GuestName:        "Cash Guest",
		CheckIn:          date(2025, 3, 5),
		CheckOut:         date(2025, 3, 7),
		BaseRate:         dec("450"),
		GrossAmount:      dec("500"),
		LuxuryLodgingFee: &fee,
	}
	before := st.OwnerPayout

	r, err := m.InsertCustomReservation(in)
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsCustom || r.PropertyID != 1 {
		t.Fatalf("custom reservation not attached correctly: %+v", r)
	}
	if !st.OwnerPayout.Equal(before.Add(dec("500"))) {
		t.Fatalf("payout %s -> %s, want verbatim +500", before, st.OwnerPayout)
	}

	// Same guest, dates and payout: a duplicate.
	if _, err := m.InsertCustomReservation(in); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}

	// Missing fields rejected synchronously.
	var vErr *ValidationError
	if _, err := m.InsertCustomReservation(CustomReservationInput{GuestName: "X"}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for missing dates, got %v", err)
	}
	if _, err := m.InsertCustomReservation(CustomReservationInput{
		GuestName: "X", CheckIn: date(2025, 3, 8), CheckOut: date(2025, 3, 6),
	}); err == nil {
		t.Fatal("start after end must be rejected")
	}
}

func TestRemoveReservationDropsRevenueLine(t *testing.T) {
	st, rules := draftStatement(t)
	m := NewMutator(st, rules)

	if err := m.RemoveReservation("r1"); err != nil {
		t.Fatal(err)
	}
	for _, item := range st.Items {
		if item.Type == ItemRevenue && item.ReservationID == "r1" {
			t.Fatal("paired revenue line must go with its reservation")
		}
	}
	if !st.TotalRevenue.IsZero() {
		t.Fatalf("totalRevenue = %s after removal, want 0", st.TotalRevenue)
	}
}

func TestFinalStatementWhitelist(t *testing.T) {
	st, rules := draftStatement(t)
	st.Status = StatusFinal
	m := NewMutator(st, rules)

	var expenseID string
	for _, item := range st.Items {
		if item.Type == ItemExpense {
			expenseID = item.ID
		}
	}

	if err := m.HideItem(expenseID, HiddenManual); err != nil {
		t.Fatalf("hide is whitelisted on final statements: %v", err)
	}
	if err := m.RemoveReservation("r1"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("structural edits on final statements must fail, got %v", err)
	}
	if _, err := m.InsertCustomReservation(CustomReservationInput{}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("custom insert on final statements must fail, got %v", err)
	}
}

func TestUpdateCleaningFeeFeedsRecompute(t *testing.T) {
	rules := passThroughRules(15, "115")
	st := newTestStatement(CalculationCheckout,
		stay("r1", date(2025, 3, 3), date(2025, 3, 7), "1150"))
	Assemble(st, nil, rules)

	m := NewMutator(st, rules)
	if err := m.UpdateCleaningFee("r1", dec("172.50")); err != nil {
		t.Fatal(err)
	}

	r := st.findReservation("r1")
	if r.CleaningFee == nil || !r.CleaningFee.Equal(dec("172.50")) {
		t.Fatalf("stored cleaning fee = %v, want 172.50", r.CleaningFee)
	}
	b := CalculatePayout(*r, rules[1])
	if !b.CleaningFeeDeducted.Equal(dec("150")) {
		t.Fatalf("deduction = %s after fee update, want 150", b.CleaningFeeDeducted)
	}
	for _, item := range st.Items {
		if item.AutoGenerated && !item.Amount.Equal(dec("150")) {
			t.Fatalf("auto cleaning line = %s, want tracking 150", item.Amount)
		}
	}
}
