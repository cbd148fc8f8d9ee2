// Package serializer renders timelog entities as flat key/value records, the
// shape the dashboard consumes.
package serializer

import (
	"errors"
	"fmt"
	"time"

	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

const dateLayout = "2006-01-02"

// Record is one serialized timelog.
type Record map[string]any

// ErrNotSingle is returned when many is false and the input is not exactly one entity.
var ErrNotSingle = errors.New("expected exactly one timelog when many is false")

// TimeLogSerializer converts models.TimeLog values into Records. The
// employee foreign key is emitted as "employee" holding the numeric id.
type TimeLogSerializer struct{}

func NewTimeLogSerializer() *TimeLogSerializer {
	return &TimeLogSerializer{}
}

// Serialize converts logs in order. With many set to false exactly one
// timelog must be supplied.
func (s *TimeLogSerializer) Serialize(logs []models.TimeLog, many bool) ([]Record, error) {
	if !many && len(logs) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNotSingle, len(logs))
	}

	records := make([]Record, 0, len(logs))
	for _, log := range logs {
		records = append(records, s.serializeOne(log))
	}
	return records, nil
}

func (s *TimeLogSerializer) serializeOne(t models.TimeLog) Record {
	return Record{
		"id":              t.ID,
		"employee":        t.EmployeeID,
		"week_start_date": t.WeekStartDate.Format(dateLayout),
		"week_end_date":   t.WeekEndDate.Format(dateLayout),
		"monday_hours":    t.MondayHours,
		"tuesday_hours":   t.TuesdayHours,
		"wednesday_hours": t.WednesdayHours,
		"thursday_hours":  t.ThursdayHours,
		"friday_hours":    t.FridayHours,
		"pto_hours":       t.PTOHours,
		"total_hours":     t.TotalHours(),
		"created_at":      t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":      t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
