package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mathewdenison/employees-timesheet-list/internal/serializer"
)

// EmployeeFields lists the record keys that may hold the employee id, in
// priority order.
var EmployeeFields = []string{"employee_id", "employee"}

// GroupedTimelogs maps employee id to that employee's records. Keys keep the
// order in which they were first seen and marshal to JSON in that order.
type GroupedTimelogs struct {
	keys   []string
	groups map[string][]serializer.Record
}

func NewGroupedTimelogs() *GroupedTimelogs {
	return &GroupedTimelogs{groups: make(map[string][]serializer.Record)}
}

// Append adds a record under key, creating the group on first use.
func (g *GroupedTimelogs) Append(key string, r serializer.Record) {
	if _, ok := g.groups[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.groups[key] = append(g.groups[key], r)
}

// Keys returns employee ids in first-seen order.
func (g *GroupedTimelogs) Keys() []string {
	return append([]string(nil), g.keys...)
}

func (g *GroupedTimelogs) Get(key string) []serializer.Record {
	return g.groups[key]
}

func (g *GroupedTimelogs) Len() int {
	return len(g.keys)
}

// Records returns the total number of grouped records.
func (g *GroupedTimelogs) Records() int {
	n := 0
	for _, recs := range g.groups {
		n += len(recs)
	}
	return n
}

func (g *GroupedTimelogs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(g.groups[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal timelogs for employee %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GroupByEmployee groups records by employee id. Records without any of
// EmployeeFields are dropped.
func GroupByEmployee(records []serializer.Record) *GroupedTimelogs {
	grouped := NewGroupedTimelogs()
	for _, r := range records {
		id, ok := EmployeeKey(r)
		if !ok {
			continue
		}
		grouped.Append(id, r)
	}
	return grouped
}

// EmployeeKey returns the string form of the first present employee field.
// A nil or empty-string value counts as absent.
func EmployeeKey(r serializer.Record) (string, bool) {
	for _, field := range EmployeeFields {
		v, ok := r[field]
		if !ok || v == nil {
			continue
		}
		if s := identifierString(v); s != "" {
			return s, true
		}
	}
	return "", false
}

func identifierString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		if id == math.Trunc(id) && math.Abs(id) < 1e15 {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}
