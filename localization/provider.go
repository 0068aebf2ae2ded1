// Package localization supplies country-specific fake person, address and
// company data to the generation engines. One concrete provider exists per
// supported country code; lookup goes through ForCountry.
package localization

import (
	"fmt"
	"strings"
)

// Rand is the slice of the deterministic generator the providers need.
// Declared here so localization does not depend on the workflow package.
type Rand interface {
	Next() float64
	Int(min, max int) int
	Bool(p float64) bool
}

type Provider interface {
	CountryCode() string
	FirstName(r Rand) string
	LastName(r Rand) string
	FullName(r Rand) string
	Email(first, last, domain string) string
	Phone(r Rand) string
	StreetAddress(r Rand) string
	City(r Rand) string
	State(r Rand) string
	PostalCode(r Rand) string
	FullAddress(r Rand) string
	CompanyName(r Rand, industry string) string
	CompanyDomain(name string) string
}

var registry = map[string]Provider{}

func register(p Provider) {
	registry[strings.ToUpper(p.CountryCode())] = p
}

// ForCountry returns the provider for a country code, defaulting to US.
func ForCountry(code string) Provider {
	if p, ok := registry[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return p
	}
	return registry["US"]
}

// SupportedCountries lists registered country codes.
func SupportedCountries() []string {
	codes := make([]string, 0, len(registry))
	for c := range registry {
		codes = append(codes, c)
	}
	return codes
}

func pick[T any](r Rand, items []T) T {
	return items[r.Int(0, len(items)-1)]
}

func slugify(name string) string {
	s := strings.ToLower(name)
	for _, cut := range []string{",", ".", "'", "&"} {
		s = strings.ReplaceAll(s, cut, "")
	}
	fields := strings.Fields(s)
	// Drop common suffixes so "Acme Holdings Inc" becomes acmeholdings.com.
	if n := len(fields); n > 1 {
		switch fields[n-1] {
		case "inc", "llc", "ltd", "co", "corp", "group", "gmbh":
			fields = fields[:n-1]
		}
	}
	return strings.Join(fields, "")
}

func emailFor(first, last, domain string) string {
	return fmt.Sprintf("%s.%s@%s",
		strings.ToLower(strings.ReplaceAll(first, " ", "")),
		strings.ToLower(strings.ReplaceAll(last, " ", "")),
		domain)
}
