package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AngelCh415/mkt-kpi/internal/money"
)

var (
	errEmpty    = errors.New("missing value")
	errNegative = errors.New("negative amount")

	// ErrRateOutOfRange marks a readable conversion rate outside [0, 1].
	ErrRateOutOfRange = errors.New("conversion rate outside [0, 1]")
)

var currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", " ", "", "\u00a0", "")

// ParseCurrency turns "$1,234.50", "€1.234,50", "€99" or "1234.5" into an
// exact amount.
func ParseCurrency(s string) (money.Amount, error) {
	cleaned := currencyStripper.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return money.Amount{}, errEmpty
	}
	a, err := money.Parse(decimalPoint(cleaned))
	if err != nil {
		return money.Amount{}, fmt.Errorf("no numeric value in %q", s)
	}
	return a, nil
}

// decimalPoint rewrites separators so that "." is the only decimal mark.
// With both "." and "," present the last one is the decimal mark. A single
// comma followed by one or two digits is a decimal comma; other commas, and
// repeated dots, group thousands.
func decimalPoint(s string) string {
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if tail := len(s) - comma - 1; strings.Count(s, ",") == 1 && tail >= 1 && tail <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ParseROI reads a reported ROI figure. It may be negative; a trailing "%"
// is dropped and the number is kept in the file's own unit.
func ParseROI(s string) (money.Amount, error) {
	return ParseCurrency(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// parseNonNegativeCurrency is ParseCurrency for cost fields, which may not
// go below zero.
func parseNonNegativeCurrency(s string) (money.Amount, error) {
	a, err := ParseCurrency(s)
	if err != nil {
		return a, err
	}
	if a.Sign() < 0 {
		return money.Amount{}, fmt.Errorf("%w %q", errNegative, s)
	}
	return a, nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ParseDate accepts ISO 8601 dates and a handful of common alternates.
// Slash dates are read month first.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// ParseCount reads a non-negative count. Negative values come back as zero
// with clamped=true; fractional values are rounded half to even.
func ParseCount(s string) (n int64, clamped bool, err error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false, errEmpty
	}
	a, err := money.Parse(cleaned)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %q", s)
	}
	if a.Sign() < 0 {
		return 0, true, nil
	}
	return a.RoundHalfEven(), false, nil
}

// ParseRate reads a conversion rate as a fraction. "4%" and "0.04" are the
// same rate.
func ParseRate(s string) (money.Amount, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return money.Amount{}, errEmpty
	}
	percent := strings.HasSuffix(cleaned, "%")
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "%"))
	r, err := money.Parse(cleaned)
	if err != nil {
		return money.Amount{}, fmt.Errorf("not a rate: %q", s)
	}
	if percent {
		r, _ = r.Div(money.FromInt64(100))
	}
	if r.Sign() < 0 || r.Cmp(money.FromInt64(1)) > 0 {
		return money.Amount{}, fmt.Errorf("%w: %q", ErrRateOutOfRange, s)
	}
	return r, nil
}
