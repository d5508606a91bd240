package aggregate

import (
	"testing"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

func TestContacts_SkipsAnonymous(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		fileRecord("f1", "", "10.0.0.1", baseTime, nil),
		fileRecord("f1", "a@acme.com", "", baseTime.Add(time.Minute), nil),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}
	if contacts[0].Email != "a@acme.com" {
		t.Errorf("Email = %q", contacts[0].Email)
	}
	if contacts[0].Company != "Acme" {
		t.Errorf("Company = %q, want Acme", contacts[0].Company)
	}
}

func TestContacts_EmailNormalized(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		fileRecord("f1", "A@Acme.com", "", baseTime, nil),
		fileRecord("f1", " a@acme.com ", "", baseTime.Add(time.Minute), nil),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 1 {
		t.Fatalf("case variants should merge into one contact, got %d", len(contacts))
	}
	if contacts[0].TotalViews != 2 {
		t.Errorf("TotalViews = %d, want 2", contacts[0].TotalViews)
	}
}

func TestContacts_MeanOfPerFileScores(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		// File A: maxed engagement, folds to 100.
		fileRecord("fa", "a@acme.com", "", baseTime, func(r *model.AccessLog) {
			r.TotalDurationSeconds = 600
			r.CompletionPercentage = 100
			r.Downloaded = true
			r.IsReturnVisit = true
			r.ReturnVisitCount = 2
			r.TotalPages = 10
			r.MaxPageReached = 10
		}),
		// File B: empty bounce, folds to 0.
		fileRecord("fb", "a@acme.com", "", baseTime.Add(time.Minute), nil),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}

	c := contacts[0]
	if c.AvgEngagement != 50 {
		t.Errorf("AvgEngagement = %v, want 50 (mean of per-file scores 100 and 0)", c.AvgEngagement)
	}
	if len(c.FilesViewed) != 2 || c.FilesViewed[0] != "fa" || c.FilesViewed[1] != "fb" {
		t.Errorf("FilesViewed = %v", c.FilesViewed)
	}
	if !c.HasDownloaded {
		t.Error("HasDownloaded should carry over from any session")
	}
	if c.TotalTimeSeconds != 600 {
		t.Errorf("TotalTimeSeconds = %d, want 600", c.TotalTimeSeconds)
	}
	if c.FirstSeenAt != baseTime || c.LastSeenAt != baseTime.Add(time.Minute) {
		t.Errorf("seen range wrong: %v .. %v", c.FirstSeenAt, c.LastSeenAt)
	}
}

func TestContacts_SingleSessionBinaryReturn(t *testing.T) {
	t.Parallel()

	// One session, flagged as a return visit. The single-session path
	// credits the return sub-score all-or-nothing (100 * 0.15 = 15) on top
	// of the time sub-score (100 * 0.25 = 25), not the graduated
	// 50-per-visit convention, which would land on 33.
	records := []*model.AccessLog{
		fileRecord("f1", "a@acme.com", "", baseTime, func(r *model.AccessLog) {
			r.TotalDurationSeconds = 600
			r.IsReturnVisit = true
			r.ReturnVisitCount = 1
		}),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}
	if contacts[0].AvgEngagement != 40 {
		t.Errorf("AvgEngagement = %v, want 40 (binary return convention)", contacts[0].AvgEngagement)
	}
}

func TestContacts_MultiSessionGraduatedReturn(t *testing.T) {
	t.Parallel()

	// Two sessions against one file merge into one rollup scored with the
	// graduated return convention: time sub-score saturates on the merged
	// 630s dwell (25), return credit is 50 * 0.15 = 7.5, total rounds to 33.
	records := []*model.AccessLog{
		fileRecord("f1", "a@acme.com", "", baseTime, func(r *model.AccessLog) {
			r.TotalDurationSeconds = 30
		}),
		fileRecord("f1", "a@acme.com", "", baseTime.Add(time.Hour), func(r *model.AccessLog) {
			r.TotalDurationSeconds = 600
			r.IsReturnVisit = true
			r.ReturnVisitCount = 1
		}),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}
	if contacts[0].AvgEngagement != 33 {
		t.Errorf("AvgEngagement = %v, want 33", contacts[0].AvgEngagement)
	}
}

func TestContacts_SortedByRecency(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		fileRecord("f1", "old@x.com", "", baseTime, nil),
		fileRecord("f1", "new@x.com", "", baseTime.Add(time.Hour), nil),
	}

	contacts := Contacts(records, nil)
	if len(contacts) != 2 {
		t.Fatalf("got %d contacts, want 2", len(contacts))
	}
	if contacts[0].Email != "new@x.com" {
		t.Errorf("most recent contact should sort first, got %q", contacts[0].Email)
	}
}

func TestContacts_HotFlag(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		fileRecord("f1", "hot@acme.com", "", baseTime, func(r *model.AccessLog) {
			r.TotalDurationSeconds = 600
			r.CompletionPercentage = 100
			r.Downloaded = true
			r.IsReturnVisit = true
			r.ReturnVisitCount = 2
			r.TotalPages = 10
			r.MaxPageReached = 10
		}),
	}

	contacts := Contacts(records, nil)
	if !contacts[0].IsHotLead {
		t.Error("a maxed-out contact should be flagged hot")
	}
}
