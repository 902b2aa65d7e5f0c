package attendance

import (
	"math"
	"time"

	"geoattend/internal/schedule"
)

// AllSubjects selects every subject in a stats query.
const AllSubjects = "all"

// combinedLabel names the single aggregate row produced for "all".
const combinedLabel = "All Subjects Combined"

// Query selects records for aggregation. SubjectID may be AllSubjects (or
// empty) to combine every subject into one row.
type Query struct {
	Start     time.Time
	End       time.Time
	SubjectID string
}

// SubjectStats holds the four counters and derived percentages for one
// result row. The raw counters trust automatic detection only: a manually
// modified record still counts as considered but never as attended.
type SubjectStats struct {
	SubjectName             string  `json:"subject_name"`
	Percent                 float64 `json:"percent"`
	PercentModified         float64 `json:"percent_modified"`
	TotalAttended           int     `json:"total_attended"`
	TotalConsidered         int     `json:"total_considered"`
	TotalAttendedModified   int     `json:"total_attended_modified"`
	TotalConsideredModified int     `json:"total_considered_modified"`
}

func (s *SubjectStats) add(rec Record) {
	if rec.Exclude || rec.Status == StatusPending {
		return
	}
	s.TotalConsidered++
	if rec.Status == StatusAttended && !rec.Modified {
		s.TotalAttended++
	}
	s.TotalConsideredModified++
	if rec.Status == StatusAttended {
		s.TotalAttendedModified++
	}
}

func (s *SubjectStats) finalize() {
	s.Percent = percentage(s.TotalAttended, s.TotalConsidered)
	s.PercentModified = percentage(s.TotalAttendedModified, s.TotalConsideredModified)
}

func percentage(attended, considered int) float64 {
	if considered == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(considered)*100*100) / 100
}

// Aggregate computes attendance statistics over [q.Start, q.End] inclusive
// (internally half-open with the end advanced by one day), optionally
// filtered to one subject. The subject filter matches the subject id
// snapshotted on each record.
func Aggregate(records RecordSet, subjects []schedule.Subject, q Query) ([]SubjectStats, error) {
	if q.Start.After(q.End) {
		return nil, NewValidationError("start date cannot be after end date")
	}

	subjectID := q.SubjectID
	if subjectID == AllSubjects {
		subjectID = ""
	}
	label := combinedLabel
	if subjectID != "" {
		sub, ok := schedule.FindSubject(subjects, subjectID)
		if !ok {
			return nil, NewValidationError("unknown subject %q", subjectID)
		}
		label = sub.Name
	}

	end := q.End.AddDate(0, 0, 1)
	row := SubjectStats{SubjectName: label}
	for dateString, daySlots := range records {
		date, err := ParseDate(dateString)
		if err != nil {
			continue
		}
		if date.Before(q.Start) || !date.Before(end) {
			continue
		}
		for _, rec := range daySlots {
			if subjectID != "" && rec.SubjectID != subjectID {
				continue
			}
			row.add(rec)
		}
	}
	row.finalize()
	return []SubjectStats{row}, nil
}
