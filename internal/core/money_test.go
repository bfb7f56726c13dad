package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"15.50", 1550, true},
		{"15,50", 1550, true},
		{"15", 1500, true},
		{"0.99", 99, true},
		{"12.345", 1234, true},
		{"12.346", 1235, true},
		{"0", 0, true},
		{"", 0, false},
		{"-1.00", 0, false},
		{"+1.00", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		cents, err := ParseDecimalToCents(tc.in)
		if tc.ok && (err != nil || cents != tc.cents) {
			t.Fatalf("ParseDecimalToCents(%q) = %d, %v; want %d", tc.in, cents, err, tc.cents)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseDecimalToCents(%q) expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1550, "15.50"},
		{99, "0.99"},
		{100, "1.00"},
		{0, "0.00"},
		{1000000, "10000.00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestReceiptValidate(t *testing.T) {
	good := testReceipt()
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Receipt{
		{Items: "a", Amount: Money{Cents: 1}},                                // zero date
		{Date: NewDate(2024, 1, 15), Items: "", Amount: Money{Cents: 1}},     // empty items
		{Date: NewDate(2024, 1, 15), Items: "a", Amount: Money{Cents: -10}},  // negative amount
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
