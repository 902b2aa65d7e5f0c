package attendance

import "time"

// DateLayout is the key format for daily records.
const DateLayout = "2006-01-02"

// Status is the attendance decision for one slot on one day. Pending is an
// explicit variant rather than an absent record.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAttended    Status = "attended"
	StatusNotAttended Status = "not-attended"
)

// Record is the attendance decision for a (date, slot) pair, plus the slot
// snapshot taken when the decision was committed. Modified flips to true on
// the first manual toggle and never reverts.
type Record struct {
	Status       Status `json:"status"`
	Modified     bool   `json:"modified"`
	SubjectID    string `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	TimeSlot     string `json:"time_slot"`
	Exclude      bool   `json:"exclude"`
	LocationName string `json:"location_name"`
}

// RecordSet maps "YYYY-MM-DD" date strings to slot-id-keyed records.
type RecordSet map[string]map[string]Record

// Get looks a record up by date and slot id.
func (rs RecordSet) Get(date, slotID string) (Record, bool) {
	day, ok := rs[date]
	if !ok {
		return Record{}, false
	}
	rec, ok := day[slotID]
	return rec, ok
}

// Set writes a record, creating the day bucket as needed. The receiver is
// left untouched; a shallow-copied set is returned so callers can keep the
// previous snapshot for optimistic-update bookkeeping.
func (rs RecordSet) Set(date, slotID string, rec Record) RecordSet {
	out := make(RecordSet, len(rs)+1)
	for d, slots := range rs {
		out[d] = slots
	}
	day := make(map[string]Record, len(out[date])+1)
	for id, r := range out[date] {
		day[id] = r
	}
	day[slotID] = rec
	out[date] = day
	return out
}

// ToggleAttendance flips a record between attended and not-attended and
// marks it manually modified. Modified stays true on every later toggle.
func ToggleAttendance(rec Record) Record {
	if rec.Status == StatusAttended {
		rec.Status = StatusNotAttended
	} else {
		rec.Status = StatusAttended
	}
	rec.Modified = true
	return rec
}

// ToggleExclude flips only the exclude flag; status and modified are left
// untouched.
func ToggleExclude(rec Record) Record {
	rec.Exclude = !rec.Exclude
	return rec
}

// ParseDate parses a record date key.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
