package presentation

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortState is the column a table is ordered by
type SortState struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// DefaultSort orders tables by closing date, earliest first
var DefaultSort = SortState{Field: "dates.closing", Direction: SortAsc}

// Toggle returns the state after a header click: the same field flips
// direction, a new field starts ascending
func (s SortState) Toggle(field string) SortState {
	if s.Field == field {
		if s.Direction == SortAsc {
			return SortState{Field: field, Direction: SortDesc}
		}
		return SortState{Field: field, Direction: SortAsc}
	}
	return SortState{Field: field, Direction: SortAsc}
}

// ParseSortState builds a state from query parameters, defaulting to
// DefaultSort
func ParseSortState(field, order string) SortState {
	state := DefaultSort
	if field != "" {
		state.Field = field
	}
	if strings.EqualFold(order, SortDesc) {
		state.Direction = SortDesc
	} else if order != "" {
		state.Direction = SortAsc
	}
	return state
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fieldMap renders a record in its JSON shape so dotted paths such as
// gmp.percentage resolve the same way clients see them
func fieldMap(d DisplayIPO) map[string]interface{} {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// lookup walks a dotted path. Missing segments yield nil.
func lookup(fields map[string]interface{}, path string) interface{} {
	var cur interface{} = fields
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// compareValues orders strings lexically and numbers numerically. Mixed or
// other types compare by their string form.
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(stringForm(a), stringForm(b))
}

func stringForm(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = stringForm(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// SortDisplay returns a stably sorted copy of records
func SortDisplay(records []DisplayIPO, state SortState) []DisplayIPO {
	type keyed struct {
		record DisplayIPO
		key    interface{}
	}

	rows := make([]keyed, len(records))
	for i, r := range records {
		rows[i] = keyed{record: r, key: lookup(fieldMap(r), state.Field)}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i].key, rows[j].key)
		if state.Direction == SortDesc {
			return c > 0
		}
		return c < 0
	})

	out := make([]DisplayIPO, len(rows))
	for i, r := range rows {
		out[i] = r.record
	}
	return out
}
