package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func TestMonthBounds(t *testing.T) {
	start, end := monthBounds("2025-02")
	if !start.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if end.Month() != time.February || end.Day() != 28 {
		t.Errorf("end = %v, want last minute of february", end)
	}
	if !end.Before(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end %v spills into the next month", end)
	}
}

func TestProgressWithin(t *testing.T) {
	lo := models.PhaseProgress(models.PhaseCompanies)
	hi := models.PhaseProgress(models.PhaseContacts)

	if got := progressWithin(models.PhaseCompanies, 0, 10); got != lo {
		t.Errorf("start of phase = %d, want %d", got, lo)
	}
	if got := progressWithin(models.PhaseCompanies, 10, 10); got != hi {
		t.Errorf("end of phase = %d, want %d", got, hi)
	}
	mid := progressWithin(models.PhaseCompanies, 5, 10)
	if mid <= lo || mid >= hi {
		t.Errorf("midpoint %d not strictly between %d and %d", mid, lo, hi)
	}
	if got := progressWithin(models.PhaseCompanies, 0, 0); got != lo {
		t.Errorf("empty phase = %d, want %d", got, lo)
	}
}

func TestPickOwner(t *testing.T) {
	rng := NewSeededRNGFromString("owners")
	if got := pickOwner(rng, nil); got != 0 {
		t.Errorf("no users should yield 0, got %d", got)
	}
	users := []int{11, 12, 13}
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		id := pickOwner(rng, users)
		if id != 11 && id != 12 && id != 13 {
			t.Fatalf("picked unknown owner %d", id)
		}
		seen[id] = true
	}
	if len(seen) != 3 {
		t.Errorf("200 picks only used %d of 3 owners", len(seen))
	}
}

// The state blob must survive a marshal/unmarshal cycle with its cursors and
// id orderings intact, because every resume does exactly that.
func TestGenerationState_CheckpointRoundTrip(t *testing.T) {
	state := &GenerationState{
		Months: []models.MonthlyTarget{
			{Month: "2025-01", Contacts: 50, Deals: 10},
			{Month: "2025-02", Contacts: 60, Deals: 12},
		},
		UserIds:    []int{1, 2, 3},
		StageIds:   []int{10, 11, 12, 13, 14, 15},
		CompanyIds: []int{100, 101, 102},
		PendingContacts: []ContactSpec{
			{Month: "2025-01", FirstName: "Jane", LastName: "Doe"},
			{Month: "2025-01", FirstName: "John", LastName: "Smith"},
		},
		ContactsPlanned: true,
		ContactCursor:   1,
	}

	blob, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	var restored GenerationState
	if err := json.Unmarshal(blob, &restored); err != nil {
		t.Fatal(err)
	}

	if restored.ContactCursor != 1 || !restored.ContactsPlanned {
		t.Errorf("cursor state lost: %+v", restored)
	}
	if len(restored.PendingContacts) != 2 || restored.PendingContacts[0].FirstName != "Jane" {
		t.Errorf("pending specs lost order: %+v", restored.PendingContacts)
	}
	for i, id := range state.CompanyIds {
		if restored.CompanyIds[i] != id {
			t.Fatalf("company id order changed at %d", i)
		}
	}
	if len(restored.Months) != 2 || restored.Months[1].Contacts != 60 {
		t.Errorf("months lost: %+v", restored.Months)
	}
}
