package localization

import (
	"fmt"

	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

type enUS struct{}

func init() {
	register(enUS{})
}

var usFirstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Christopher", "Karen", "Charles",
	"Lisa", "Daniel", "Nancy", "Matthew", "Betty", "Anthony", "Sandra",
	"Mark", "Margaret", "Donald", "Ashley", "Steven", "Kimberly", "Andrew",
	"Emily", "Paul", "Donna", "Joshua", "Michelle", "Kenneth", "Carol",
	"Kevin", "Amanda", "Brian", "Melissa", "Timothy", "Deborah", "Ronald",
	"Stephanie",
}

var usLastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
	"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores", "Green",
	"Adams", "Nelson", "Baker", "Hall", "Rivera", "Campbell", "Mitchell",
	"Carter", "Roberts",
}

var usCities = []string{
	"Austin", "Denver", "Seattle", "Portland", "Chicago", "Boston",
	"Atlanta", "Nashville", "Phoenix", "Columbus", "Charlotte", "Raleigh",
	"Minneapolis", "Tampa", "San Diego", "Dallas", "Kansas City", "Omaha",
	"Salt Lake City", "Pittsburgh",
}

var usStates = []string{
	"TX", "CO", "WA", "OR", "IL", "MA", "GA", "TN", "AZ", "OH", "NC",
	"MN", "FL", "CA", "MO", "NE", "UT", "PA", "NY", "VA",
}

var usStreets = []string{
	"Main St", "Oak Ave", "Maple Dr", "Cedar Ln", "Pine St", "Elm St",
	"Washington Blvd", "Lake View Rd", "Hillcrest Ave", "Ridge Rd",
	"Sunset Blvd", "Park Ave", "River Rd", "Meadow Ln", "Highland Ave",
}

// Geographically valid-looking area codes so generated numbers survive
// libphonenumber validation.
var usAreaCodes = []string{
	"212", "312", "415", "512", "617", "702", "214", "303", "206", "404",
	"615", "602", "614", "704", "919", "612", "813", "619", "816", "412",
}

var usCompanyWords = []string{
	"Summit", "Pioneer", "Blue Ridge", "Cascade", "Keystone", "Lakeshore",
	"Ironwood", "Silverline", "Northwind", "Harvest", "Beacon", "Crestview",
	"Redwood", "Granite", "Clearwater", "Horizon", "Frontier", "Monarch",
}

var usCompanySuffixes = []string{"Inc", "LLC", "Group", "Co", "Partners", "Labs"}

func (enUS) CountryCode() string { return "US" }

func (enUS) FirstName(r Rand) string { return pick(r, usFirstNames) }

func (enUS) LastName(r Rand) string { return pick(r, usLastNames) }

func (p enUS) FullName(r Rand) string {
	return p.FirstName(r) + " " + p.LastName(r)
}

func (enUS) Email(first, last, domain string) string {
	if domain == "" {
		domain = "example.com"
	}
	return emailFor(first, last, domain)
}

func (enUS) Phone(r Rand) string {
	// NANP: 3-digit exchange starting 2-9, then a 4-digit line number.
	raw := fmt.Sprintf("+1%s%d%04d", pick(r, usAreaCodes), r.Int(200, 999), r.Int(0, 9999))
	return utils.FormatPhoneNumber(raw, "US")
}

func (enUS) StreetAddress(r Rand) string {
	return fmt.Sprintf("%d %s", r.Int(100, 9999), pick(r, usStreets))
}

func (enUS) City(r Rand) string { return pick(r, usCities) }

func (enUS) State(r Rand) string { return pick(r, usStates) }

func (enUS) PostalCode(r Rand) string { return fmt.Sprintf("%05d", r.Int(10000, 99999)) }

func (p enUS) FullAddress(r Rand) string {
	return fmt.Sprintf("%s, %s, %s %s", p.StreetAddress(r), p.City(r), p.State(r), p.PostalCode(r))
}

func (enUS) CompanyName(r Rand, industry string) string {
	base := pick(r, usCompanyWords)
	if industry != "" && r.Bool(0.4) {
		return fmt.Sprintf("%s %s %s", base, industry, pick(r, usCompanySuffixes))
	}
	return fmt.Sprintf("%s %s", base, pick(r, usCompanySuffixes))
}

func (enUS) CompanyDomain(name string) string {
	return slugify(name) + ".com"
}
