package core

import (
	"errors"
	"testing"
)

func TestMappingValidate(t *testing.T) {
	good := ColumnMapping{Date: "A", Description: "B", Price: "ZZ"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name    string
		m       ColumnMapping
		field   Field
		wantErr error
	}{
		{"missing date", ColumnMapping{Description: "B", Price: "C"}, FieldDate, ErrMissingColumn},
		{"missing description", ColumnMapping{Date: "A", Price: "C"}, FieldDescription, ErrMissingColumn},
		{"missing price", ColumnMapping{Date: "A", Description: "B"}, FieldPrice, ErrMissingColumn},
		{"bad format", ColumnMapping{Date: "A1", Description: "B", Price: "C"}, FieldDate, ErrInvalidColumnFormat},
		{"out of range", ColumnMapping{Date: "A", Description: "AAA", Price: "C"}, FieldDescription, ErrColumnOutOfRange},
	}
	for _, tc := range cases {
		err := tc.m.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var fe *FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected FieldError, got %T", tc.name, err)
		}
		if fe.Field != tc.field {
			t.Fatalf("%s: field = %s, want %s", tc.name, fe.Field, tc.field)
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestMappingDuplicates(t *testing.T) {
	unique := ColumnMapping{Date: "A", Description: "B", Price: "C"}
	if unique.HasDuplicates() {
		t.Fatal("A,B,C should have no duplicates")
	}
	if groups := unique.DuplicateGroups(); len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groups)
	}

	shared := ColumnMapping{Date: "A", Description: "B", Price: "A"}
	if !shared.HasDuplicates() {
		t.Fatal("A,B,A should have duplicates")
	}
	groups := shared.DuplicateGroups()
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %v", groups)
	}
	fields, ok := groups[0]
	if !ok {
		t.Fatalf("expected group at index 0, got %v", groups)
	}
	if len(fields) != 2 || fields[0] != FieldDate || fields[1] != FieldPrice {
		t.Fatalf("group = %v, want [date price]", fields)
	}
}

func TestMappingRecordRoundTrip(t *testing.T) {
	m := ColumnMapping{Date: "A", Description: "B", Price: "F"}
	if got := MappingFromRecord(m.Record()); got != m {
		t.Fatalf("round trip = %+v, want %+v", got, m)
	}

	// A record missing fields decodes into a mapping that fails Validate;
	// decoding itself never errors.
	partial := MappingFromRecord(MappingRecord{Date: "A"})
	var fe *FieldError
	if err := partial.Validate(); !errors.As(err, &fe) || fe.Field != FieldDescription {
		t.Fatalf("partial record validate = %v, want missing description_column", err)
	}
}

func TestMappingIndex(t *testing.T) {
	m := ColumnMapping{Date: "A", Description: "AA", Price: "ZZ"}
	if got := m.Index(FieldDate); got != 0 {
		t.Fatalf("date index = %d", got)
	}
	if got := m.Index(FieldDescription); got != 26 {
		t.Fatalf("description index = %d", got)
	}
	if got := m.Index(FieldPrice); got != 701 {
		t.Fatalf("price index = %d", got)
	}
}
