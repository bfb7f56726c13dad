package core

import (
	"errors"
	"fmt"
)

// Field identifies one of the three receipt fields a column can hold.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldPrice       Field = "price"
)

// fieldOrder is the fixed field order used for validation reporting and
// for joining values that collide on the same column.
var fieldOrder = [3]Field{FieldDate, FieldDescription, FieldPrice}

var ErrMissingColumn = errors.New("column is required")

// FieldError reports which field of a ColumnMapping failed validation and why.
type FieldError struct {
	Field Field
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s_column: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ColumnMapping assigns each receipt field to a spreadsheet column.
// Duplicate assignments are allowed; the row builder concatenates them.
type ColumnMapping struct {
	Date        string
	Description string
	Price       string
}

// Column returns the letters assigned to the given field.
func (m ColumnMapping) Column(f Field) string {
	switch f {
	case FieldDate:
		return m.Date
	case FieldDescription:
		return m.Description
	case FieldPrice:
		return m.Price
	}
	return ""
}

// Validate checks all three assignments and returns the first failure as a
// *FieldError, in date, description, price order.
func (m ColumnMapping) Validate() error {
	for _, f := range fieldOrder {
		col := m.Column(f)
		if col == "" {
			return &FieldError{Field: f, Err: ErrMissingColumn}
		}
		if err := ValidateColumn(col); err != nil {
			return &FieldError{Field: f, Err: err}
		}
	}
	return nil
}

// Index returns the zero-based column index for the given field.
// The mapping must have been validated first.
func (m ColumnMapping) Index(f Field) int {
	return ColumnToIndex(m.Column(f))
}

// HasDuplicates reports whether two or more fields resolve to the same column.
func (m ColumnMapping) HasDuplicates() bool {
	return m.Date == m.Description || m.Date == m.Price || m.Description == m.Price
}

// MappingRecord is the flat serialized form of a ColumnMapping. Missing or
// unknown keys never fail decoding; they produce a mapping that fails
// Validate instead.
type MappingRecord struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// Record returns the serializable form of the mapping.
func (m ColumnMapping) Record() MappingRecord {
	return MappingRecord{Date: m.Date, Description: m.Description, Price: m.Price}
}

// MappingFromRecord rebuilds a ColumnMapping from its serialized form.
func MappingFromRecord(r MappingRecord) ColumnMapping {
	return ColumnMapping{Date: r.Date, Description: r.Description, Price: r.Price}
}

// DuplicateGroups returns, for every column index claimed by at least two
// fields, the claiming fields in date, description, price order. Fields on
// a unique column do not appear.
func (m ColumnMapping) DuplicateGroups() map[int][]Field {
	byIndex := make(map[int][]Field, 3)
	for _, f := range fieldOrder {
		idx := m.Index(f)
		byIndex[idx] = append(byIndex[idx], f)
	}
	groups := make(map[int][]Field)
	for idx, fields := range byIndex {
		if len(fields) > 1 {
			groups[idx] = fields
		}
	}
	return groups
}
