// Package waves partitions a job opening's applicants into recruiting rounds.
package waves

import (
	"time"

	"recruitline/internal/domain"
	"recruitline/internal/listing"
)

// Group is one wave with the candidates that applied while it was open.
type Group struct {
	Wave       domain.Wave        `json:"wave"`
	Candidates []domain.Candidate `json:"candidates"`
}

// Belongs reports whether c applied to the opening. Candidates without an
// opening reference fall back to matching on the form title.
func Belongs(o domain.JobOpening, c domain.Candidate) bool {
	if c.OpeningID != "" {
		return c.OpeningID == o.ID
	}
	return c.FormTitle == o.Title
}

// Derive groups the opening's candidates by wave, in wave order. f is applied per group and empty groups are kept. The last open
// wave ends at now, so results must be recomputed on every read.
func Derive(o domain.JobOpening, candidates []domain.Candidate, now time.Time, f listing.Filter) []Group {
	var selected []domain.Candidate
	for _, c := range candidates {
		if Belongs(o, c) {
			selected = append(selected, c)
		}
	}
	if len(o.Waves) == 0 {
		w := domain.Wave{Number: 1, OpenedAt: o.CreatedAt}
		if o.Status == domain.OpeningClosed {
			closed := now
			w.ClosedAt = &closed
		}
		return []Group{{Wave: w, Candidates: filter(selected, f)}}
	}
	groups := make([]Group, 0, len(o.Waves))
	for i, w := range o.Waves {
		end := now
		switch {
		case w.ClosedAt != nil:
			end = *w.ClosedAt
		case i+1 < len(o.Waves):
			end = o.Waves[i+1].OpenedAt
		}
		var members []domain.Candidate
		for _, c := range selected {
			if !c.AppliedAt.Before(w.OpenedAt) && c.AppliedAt.Before(end) {
				members = append(members, c)
			}
		}
		groups = append(groups, Group{Wave: w, Candidates: filter(members, f)})
	}
	return groups
}

func filter(in []domain.Candidate, f listing.Filter) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(in))
	for _, c := range in {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Current returns the open wave, if the opening has one.
func Current(o domain.JobOpening) (domain.Wave, bool) {
	if n := len(o.Waves); n > 0 && o.Waves[n-1].Open() {
		return o.Waves[n-1], true
	}
	return domain.Wave{}, false
}
