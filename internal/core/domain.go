package core

import (
	"fmt"
	"time"
)

const (
	Enrolment   Category = "enrolment"
	Demographic Category = "demographic"
	Biometric   Category = "biometric"
)

// UnknownState is the sentinel label for rows that cannot be attributed to
// any region. Such rows never reach aggregation.
const UnknownState = "UNKNOWN"

type (
	// Category is one of the three record types.
	Category string

	// Date is a calendar day. The zero value is the missing-date sentinel.
	Date struct {
		time.Time
	}

	// Month is a calendar year-month bucket.
	Month struct {
		Year  int
		Month time.Month
	}

	// Record is one normalized input row.
	Record struct {
		Date  Date
		State string // canonical label, passthrough label, or "" when the source cell was empty
		// Counters follow the order of the category's counter columns.
		Counters []int64
		Extra    map[string]string
	}

	// Table is the ordered union of all records loaded for one category.
	Table struct {
		Category Category
		Records  []Record
		Files    []string
	}
)

// Categories lists every category in load order.
func Categories() []Category {
	return []Category{Enrolment, Demographic, Biometric}
}

// String implements fmt.Stringer
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether c is one of the known categories
func (c Category) IsValid() bool {
	switch c {
	case Enrolment, Demographic, Biometric:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsMissing returns true for the missing-date sentinel
func (d Date) IsMissing() bool {
	return d.IsZero()
}

// YearMonth returns the month bucket the date falls in.
func (d Date) YearMonth() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Before reports whether m is chronologically earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// AddMonths returns the month n months after m.
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Len returns the number of records in the table.
func (t Table) Len() int {
	return len(t.Records)
}

// Total returns the sum of all counters of a record.
func (r Record) Total() int64 {
	var sum int64
	for _, c := range r.Counters {
		sum += c
	}
	return sum
}
