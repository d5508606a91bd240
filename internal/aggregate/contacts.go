package aggregate

import (
	"sort"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/scoring"
)

// Contacts rebuilds per-contact aggregates from raw records. Only records
// carrying a viewer email participate; anonymous sessions have no contact
// to attach to. A contact's engagement is the mean of their per-file
// scores: each (viewer, file) group is scored first, then averaged across
// files — not a re-weighted formula over the pooled raw fields.
func Contacts(records []*model.AccessLog, metas map[string]*model.File) []*model.Contact {
	byEmail := make(map[string][]*model.AccessLog)
	order := make([]string, 0)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		email := model.NormalizeEmail(rec.ViewerEmail)
		if email == "" {
			continue
		}
		if _, seen := byEmail[email]; !seen {
			order = append(order, email)
		}
		byEmail[email] = append(byEmail[email], rec)
	}

	contacts := make([]*model.Contact, 0, len(order))
	for _, email := range order {
		contacts = append(contacts, buildContact(email, byEmail[email], metas))
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if !contacts[i].LastSeenAt.Equal(contacts[j].LastSeenAt) {
			return contacts[i].LastSeenAt.After(contacts[j].LastSeenAt)
		}
		return contacts[i].Email < contacts[j].Email
	})

	return contacts
}

func buildContact(email string, records []*model.AccessLog, metas map[string]*model.File) *model.Contact {
	c := &model.Contact{
		Email:   email,
		Company: model.CompanyFromEmail(email),
	}

	byFile := GroupByFile(records)
	fileIDs := make([]string, 0, len(byFile))
	for id := range byFile {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	var scoreTotal float64
	for _, fileID := range fileIDs {
		fileRecords := byFile[fileID]
		c.FilesViewed = append(c.FilesViewed, fileID)

		// Single-session file views keep the legacy binary return
		// convention so historical contact numbers stay stable.
		if len(fileRecords) == 1 && fileRecords[0].Type() != model.LinkTypeURL {
			scoreTotal += float64(scoring.FileSessionBinaryReturn(fileRecords[0], metas[fileID]))
			continue
		}

		rollups := RollupViewers(fileRecords, metas[fileID])
		// All records share one viewer email, so exactly one rollup.
		if len(rollups) == 1 {
			scoreTotal += float64(rollups[0].EngagementScore)
		}
	}
	if len(fileIDs) > 0 {
		c.AvgEngagement = scoreTotal / float64(len(fileIDs))
	}

	for _, rec := range records {
		if c.Name == "" && rec.ViewerName != "" {
			c.Name = rec.ViewerName
		}
		c.TotalViews++
		c.TotalTimeSeconds += scoring.ResolveDuration(rec)
		if rec.HasDownload() {
			c.HasDownloaded = true
		}
		if c.FirstSeenAt.IsZero() || rec.AccessedAt.Before(c.FirstSeenAt) {
			c.FirstSeenAt = rec.AccessedAt
		}
		if rec.AccessedAt.After(c.LastSeenAt) {
			c.LastSeenAt = rec.AccessedAt
		}
	}

	c.EngagementCount = c.TotalViews
	c.IsHotLead = scoring.IsHotContact(c.AvgEngagement, c.HasDownloaded, c.TotalViews)

	return c
}
