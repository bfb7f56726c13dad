package core

import "strings"

// collisionSeparator joins values that land on the same column.
const collisionSeparator = " | "

// BuildRow converts a confirmed receipt into the sparse cell array to
// append. The array spans columns 0 through the highest mapped index;
// unmapped slots stay empty. When several fields share a column their
// values are joined with " | " in date, description, price order.
//
// The mapping must already be validated; BuildRow does not fail.
func BuildRow(r Receipt, m ColumnMapping) []string {
	maxIndex := 0
	for _, f := range fieldOrder {
		if idx := m.Index(f); idx > maxIndex {
			maxIndex = idx
		}
	}

	row := make([]string, maxIndex+1)
	values := make(map[int][]string, 3)
	for _, f := range fieldOrder {
		idx := m.Index(f)
		values[idx] = append(values[idx], r.cellValue(f))
	}
	for idx, vals := range values {
		row[idx] = strings.Join(vals, collisionSeparator)
	}
	return row
}

func (r Receipt) cellValue(f Field) string {
	switch f {
	case FieldDate:
		return r.Date.ISO()
	case FieldDescription:
		return r.Items
	case FieldPrice:
		return r.Amount.String()
	}
	return ""
}
