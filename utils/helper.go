package utils

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

// FormatPhoneNumber renders a raw generated number in national format for the
// given region; falls back to the raw string when it cannot be parsed.
func FormatPhoneNumber(phoneNumber, countryCode string) string {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.NATIONAL)
}

// IsValidMonth checks the YYYY-MM month-label format.
func IsValidMonth(month string) bool {
	return monthPattern.MatchString(month)
}

// ParseMonth returns the first instant of the labeled month in UTC.
func ParseMonth(month string) (time.Time, error) {
	if !IsValidMonth(month) {
		return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM)", month)
	}
	return time.Parse("2006-01", month)
}

func FormatMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthRange lists month labels from first to last inclusive.
func MonthRange(first, last time.Time) []string {
	var months []string
	cur := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		months = append(months, FormatMonth(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// Round2 rounds a money amount to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortedKeys returns map keys in deterministic order. Generation must never
// depend on Go map iteration order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CaptureStack returns the current goroutine stack, trimmed for job records.
func CaptureStack() string {
	s := string(debug.Stack())
	if len(s) > 8000 {
		s = s[:8000]
	}
	return strings.TrimSpace(s)
}
