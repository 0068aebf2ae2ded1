package workflow

import (
	"encoding/json"
	"testing"

	"bitbucket.org/mmdatafocus/demodata_backend/localization"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

func contactSpecsMatch(a, b ContactSpec) bool {
	if a.FirstName != b.FirstName || a.LastName != b.LastName ||
		a.Email != b.Email || a.Phone != b.Phone || a.Title != b.Title ||
		a.LifecycleStage != b.LifecycleStage || a.OwnerId != b.OwnerId ||
		a.Month != b.Month || !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if (a.CompanyId == nil) != (b.CompanyId == nil) {
		return false
	}
	return a.CompanyId == nil || *a.CompanyId == *b.CompanyId
}

// A run interrupted mid-contacts resumes by reloading the checkpoint blob and
// draining the queue from the cursor. The inserted rows up to the cursor plus
// the drained remainder must equal an uninterrupted run's output exactly.
func TestContactGeneration_ResumeMatchesUninterrupted(t *testing.T) {
	months := []models.MonthlyTarget{
		{Month: "2025-03", Contacts: 50, Leads: 12, Deals: 5},
		{Month: "2025-04", Contacts: 60, Leads: 15, Deals: 6},
	}
	loc := localization.ForCountry("US")
	companyIds := []int{100, 101, 102}
	userIds := []int{1, 2}

	full, err := buildContactSpecs("tenant-seed", months, loc, companyIds, userIds)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 110 {
		t.Fatalf("expected 110 contacts, got %d", len(full))
	}

	// A crash before the plan checkpoint lands means planning runs again from
	// the seed. It must produce the identical queue.
	replanned, err := buildContactSpecs("tenant-seed", months, loc, companyIds, userIds)
	if err != nil {
		t.Fatal(err)
	}
	for i := range full {
		if !contactSpecsMatch(full[i], replanned[i]) {
			t.Fatalf("re-planning diverged at contact %d: %+v vs %+v", i, full[i], replanned[i])
		}
	}

	// A crash after the plan checkpoint resumes through the persisted blob.
	cursor := 37
	state := &GenerationState{
		Months:          months,
		UserIds:         userIds,
		CompanyIds:      companyIds,
		PendingContacts: full,
		ContactsPlanned: true,
		ContactCursor:   cursor,
	}
	blob, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	var restored GenerationState
	if err := json.Unmarshal(blob, &restored); err != nil {
		t.Fatal(err)
	}

	resumed := make([]ContactSpec, 0, len(full))
	resumed = append(resumed, full[:cursor]...)
	resumed = append(resumed, restored.PendingContacts[restored.ContactCursor:]...)

	if len(resumed) != len(full) {
		t.Fatalf("resumed run produced %d contacts, uninterrupted %d", len(resumed), len(full))
	}
	for i := range full {
		if !contactSpecsMatch(full[i], resumed[i]) {
			t.Fatalf("resumed run diverged at contact %d: %+v vs %+v", i, full[i], resumed[i])
		}
	}

	// Monthly lead counts stay exact either way.
	leads := map[string]int{}
	for _, c := range resumed {
		if c.LifecycleStage == models.LifecycleStageLead {
			leads[c.Month]++
		}
	}
	for _, m := range months {
		if leads[m.Month] != m.Leads {
			t.Errorf("month %s has %d leads, want %d", m.Month, leads[m.Month], m.Leads)
		}
	}
}
