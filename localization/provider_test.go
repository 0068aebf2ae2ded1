package localization

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

// fakeRand steps through a fixed fraction sequence; enough to exercise
// providers without pulling in the real generator.
type fakeRand struct {
	seq []float64
	pos int
}

func (f *fakeRand) Next() float64 {
	v := f.seq[f.pos%len(f.seq)]
	f.pos++
	return v
}

func (f *fakeRand) Int(min, max int) int {
	if max <= min {
		return min
	}
	return min + int(f.Next()*float64(max-min+1))
}

func (f *fakeRand) Bool(p float64) bool { return f.Next() < p }

func newFakeRand() *fakeRand {
	return &fakeRand{seq: []float64{0.1, 0.5, 0.93, 0.27, 0.72, 0.04, 0.61, 0.38}}
}

func TestForCountry_LookupAndFallback(t *testing.T) {
	if got := ForCountry("us").CountryCode(); got != "US" {
		t.Errorf("ForCountry(us) = %q", got)
	}
	if got := ForCountry(" gb ").CountryCode(); got != "GB" {
		t.Errorf("ForCountry with whitespace = %q", got)
	}
	if got := ForCountry("ZZ").CountryCode(); got != "US" {
		t.Errorf("unknown country should fall back to US, got %q", got)
	}
}

func TestProviders_ProduceWellFormedData(t *testing.T) {
	for _, code := range SupportedCountries() {
		p := ForCountry(code)
		t.Run(code, func(t *testing.T) {
			r := newFakeRand()

			name := p.FullName(r)
			if !strings.Contains(name, " ") {
				t.Errorf("full name %q has no space", name)
			}

			email := p.Email("Jane", "Doe", "acme.com")
			if !strings.Contains(email, "@acme.com") {
				t.Errorf("email %q not on given domain", email)
			}
			if email != strings.ToLower(email) {
				t.Errorf("email %q not lowercased", email)
			}
			if !utils.IsValidEmail(email) {
				t.Errorf("email %q does not parse as an address", email)
			}

			phone := p.Phone(r)
			if strings.TrimSpace(phone) == "" {
				t.Error("empty phone")
			}
			if err := utils.ValidatePhoneNumber(phone, p.CountryCode()); err != nil {
				t.Errorf("phone %q not valid for %s: %v", phone, p.CountryCode(), err)
			}

			addr := p.FullAddress(r)
			if len(strings.Split(addr, ",")) < 3 {
				t.Errorf("address %q looks incomplete", addr)
			}

			company := p.CompanyName(r, "Tech")
			if strings.TrimSpace(company) == "" {
				t.Error("empty company name")
			}
			domain := p.CompanyDomain(company)
			if strings.Contains(domain, " ") || !strings.Contains(domain, ".") {
				t.Errorf("company domain %q malformed", domain)
			}
		})
	}
}

func TestProviders_DeterministicForSameSequence(t *testing.T) {
	p := ForCountry("US")
	a := p.FullName(newFakeRand())
	b := p.FullName(newFakeRand())
	if a != b {
		t.Errorf("same rand sequence gave %q and %q", a, b)
	}
}
