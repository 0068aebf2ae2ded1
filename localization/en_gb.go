package localization

import (
	"fmt"

	"bitbucket.org/mmdatafocus/demodata_backend/utils"
)

type enGB struct{}

func init() {
	register(enGB{})
}

var gbFirstNames = []string{
	"Oliver", "Amelia", "George", "Isla", "Harry", "Ava", "Jack", "Emily",
	"Charlie", "Sophia", "Oscar", "Grace", "Jacob", "Lily", "Thomas",
	"Freya", "Henry", "Poppy", "William", "Charlotte", "Alfie", "Daisy",
	"Joshua", "Alice", "Archie", "Florence", "Edward", "Eleanor", "Samuel",
	"Rosie",
}

var gbLastNames = []string{
	"Smith", "Jones", "Taylor", "Brown", "Williams", "Wilson", "Johnson",
	"Davies", "Robinson", "Wright", "Thompson", "Evans", "Walker", "White",
	"Roberts", "Green", "Hall", "Wood", "Jackson", "Clarke", "Hughes",
	"Edwards", "Turner", "Martin", "Cooper", "Hill", "Ward", "Morris",
	"Moore", "Clark",
}

var gbCities = []string{
	"Manchester", "Birmingham", "Leeds", "Bristol", "Sheffield", "Liverpool",
	"Newcastle", "Nottingham", "Cardiff", "Edinburgh", "Glasgow", "Brighton",
	"Cambridge", "Oxford", "Reading", "York",
}

var gbCounties = []string{
	"Greater Manchester", "West Midlands", "West Yorkshire", "Merseyside",
	"Tyne and Wear", "Kent", "Essex", "Surrey", "Hampshire", "Devon",
}

var gbStreets = []string{
	"High Street", "Station Road", "Church Lane", "Victoria Road",
	"Mill Lane", "Queens Road", "King Street", "Park Road", "London Road",
	"The Green",
}

var gbCompanyWords = []string{
	"Albion", "Regent", "Pennine", "Thames", "Avalon", "Sterling",
	"Windsor", "Camden", "Brunswick", "Hartley", "Ashford", "Kingsway",
}

var gbCompanySuffixes = []string{"Ltd", "Group", "Holdings", "Partners"}

func (enGB) CountryCode() string { return "GB" }

func (enGB) FirstName(r Rand) string { return pick(r, gbFirstNames) }

func (enGB) LastName(r Rand) string { return pick(r, gbLastNames) }

func (p enGB) FullName(r Rand) string {
	return p.FirstName(r) + " " + p.LastName(r)
}

func (enGB) Email(first, last, domain string) string {
	if domain == "" {
		domain = "example.co.uk"
	}
	return emailFor(first, last, domain)
}

func (enGB) Phone(r Rand) string {
	// 071xx-074xx is an allocated UK mobile block with no carve-outs.
	raw := fmt.Sprintf("+447%d%06d", r.Int(100, 499), r.Int(0, 999999))
	return utils.FormatPhoneNumber(raw, "GB")
}

func (enGB) StreetAddress(r Rand) string {
	return fmt.Sprintf("%d %s", r.Int(1, 250), pick(r, gbStreets))
}

func (enGB) City(r Rand) string { return pick(r, gbCities) }

func (enGB) State(r Rand) string { return pick(r, gbCounties) }

func (enGB) PostalCode(r Rand) string {
	letters := "ABCDEFGHJKLMNPRSTUVWXY"
	return fmt.Sprintf("%c%c%d %d%c%c",
		letters[r.Int(0, len(letters)-1)], letters[r.Int(0, len(letters)-1)],
		r.Int(1, 9), r.Int(1, 9),
		letters[r.Int(0, len(letters)-1)], letters[r.Int(0, len(letters)-1)])
}

func (p enGB) FullAddress(r Rand) string {
	return fmt.Sprintf("%s, %s, %s %s", p.StreetAddress(r), p.City(r), p.State(r), p.PostalCode(r))
}

func (enGB) CompanyName(r Rand, industry string) string {
	base := pick(r, gbCompanyWords)
	if industry != "" && r.Bool(0.4) {
		return fmt.Sprintf("%s %s %s", base, industry, pick(r, gbCompanySuffixes))
	}
	return fmt.Sprintf("%s %s", base, pick(r, gbCompanySuffixes))
}

func (enGB) CompanyDomain(name string) string {
	return slugify(name) + ".co.uk"
}
