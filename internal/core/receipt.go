package core

import (
	"errors"
	"strings"
	"time"
)

const MaxItemsLength = 500

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyItems    = errors.New("empty items")
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Receipt holds the confirmed values for one receipt: the transaction
	// date, the semicolon-joined item list, and the total amount.
	Receipt struct {
		Date   Date
		Items  string
		Amount Money
	}
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO returns the date in YYYY-MM-DD form, the only format written to sheets.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (r Receipt) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Items) == "" {
		return ErrEmptyItems
	}
	if len(r.Items) > MaxItemsLength {
		return errors.New("items too long (max 500 characters)")
	}
	if r.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
