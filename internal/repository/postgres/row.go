package postgres

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/Kerhoff/courtcal/internal/models"
)

// eventRow is an events table row. Optional fields are NULL when absent.
type eventRow struct {
	ID        string         `db:"id"`
	DateISO   string         `db:"date_iso"`
	StartTime string         `db:"start_time"`
	EndTime   sql.NullString `db:"end_time"`
	Court     string         `db:"court"`
	Notes     sql.NullString `db:"notes"`
	Attendees attendeeList   `db:"attendees"`
	UpdatedAt int64          `db:"updated_at"`
	UpdatedBy sql.NullString `db:"updated_by"`
}

func toRow(e models.Event) eventRow {
	return eventRow{
		ID:        e.ID,
		DateISO:   e.DateISO,
		StartTime: e.StartTime,
		EndTime:   nullString(e.EndTime),
		Court:     e.Court,
		Notes:     nullString(e.Notes),
		Attendees: attendeeList(e.Attendees),
		UpdatedAt: e.UpdatedAt,
		UpdatedBy: nullString(e.UpdatedBy),
	}
}

func (r eventRow) toModel() models.Event {
	attendees := []models.Attendee(r.Attendees)
	if attendees == nil {
		attendees = []models.Attendee{}
	}
	return models.Event{
		ID:        r.ID,
		DateISO:   r.DateISO,
		StartTime: r.StartTime,
		EndTime:   r.EndTime.String,
		Court:     r.Court,
		Notes:     r.Notes.String,
		Attendees: attendees,
		UpdatedAt: r.UpdatedAt,
		UpdatedBy: r.UpdatedBy.String,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// attendeeList is a roster stored as a JSONB array.
type attendeeList []models.Attendee

// Value encodes the roster as text; lib/pq would send []byte as bytea.
func (l attendeeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]models.Attendee(l))
	if err != nil {
		return nil, fmt.Errorf("failed to encode attendees: %w", err)
	}
	return string(b), nil
}

func (l *attendeeList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = attendeeList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported attendees type %T", src)
	}

	var out []models.Attendee
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode attendees: %w", err)
	}
	if out == nil {
		out = []models.Attendee{}
	}
	*l = out
	return nil
}
