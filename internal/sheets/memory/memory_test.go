package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestAppendAndRows(t *testing.T) {
	a := New()
	ctx := context.Background()

	n, err := a.Append(ctx, "sid", "Receipts", []string{"2024-01-15", "Coffee", "15.50"})
	if err != nil || n != 1 {
		t.Fatalf("first append = %d, %v", n, err)
	}
	n, err = a.Append(ctx, "sid", "Receipts", []string{"2024-01-16", "Lunch", "9.00"})
	if err != nil || n != 2 {
		t.Fatalf("second append = %d, %v", n, err)
	}
	// Different sheet counts separately.
	n, err = a.Append(ctx, "sid", "Other", []string{"x"})
	if err != nil || n != 1 {
		t.Fatalf("other sheet append = %d, %v", n, err)
	}

	rows := a.Rows("sid", "Receipts")
	want := [][]string{
		{"2024-01-15", "Coffee", "15.50"},
		{"2024-01-16", "Lunch", "9.00"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestAppendErrorInjection(t *testing.T) {
	a := New()
	a.Err = errors.New("boom")
	if _, err := a.Append(context.Background(), "sid", "Receipts", []string{"x"}); err == nil {
		t.Fatal("expected injected error")
	}
	if len(a.Rows("sid", "Receipts")) != 0 {
		t.Fatal("failed append must not record rows")
	}
}
