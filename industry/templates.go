package industry

import "bitbucket.org/mmdatafocus/demodata_backend/models"

func init() {
	register(Template{
		Code: "saas",
		Name: "SaaS",
		Stages: []StageDef{
			{Name: "Lead In", Type: models.StageTypeOpen, Probability: 0.30},
			{Name: "Demo Scheduled", Type: models.StageTypeOpen, Probability: 0.25},
			{Name: "Proposal Sent", Type: models.StageTypeOpen, Probability: 0.25},
			{Name: "Negotiation", Type: models.StageTypeOpen, Probability: 0.20},
			{Name: "Closed Won", Type: models.StageTypeWon},
			{Name: "Closed Lost", Type: models.StageTypeLost},
		},
		DealValueMin:         500,
		DealValueMax:         120000,
		DealValueAvg:         8500,
		WhaleRatio:           0.05,
		WinRate:              0.28,
		ActivitiesPerContact: 3.5,
		ContactSampleRatio:   0.6,
		DealActivityBias:     0.7,
		ActivityTypes: []models.ActivityType{
			models.ActivityTypeCall, models.ActivityTypeEmail,
			models.ActivityTypeMeeting, models.ActivityTypeTask,
			models.ActivityTypeNote,
		},
		ActivityTypeWeights: []float64{0.25, 0.35, 0.15, 0.15, 0.10},
		CompanyNamePatterns: []string{"Tech", "Software", "Digital", "Cloud", "Data"},
		TagNames:            []string{"Inbound", "Outbound", "Trial", "Enterprise", "Expansion"},
		TeamSize:            5,
	})

	register(Template{
		Code: "consulting",
		Name: "Consulting",
		Stages: []StageDef{
			{Name: "Inquiry", Type: models.StageTypeOpen, Probability: 0.35},
			{Name: "Discovery", Type: models.StageTypeOpen, Probability: 0.30},
			{Name: "Proposal", Type: models.StageTypeOpen, Probability: 0.20},
			{Name: "Contract Review", Type: models.StageTypeOpen, Probability: 0.15},
			{Name: "Won", Type: models.StageTypeWon},
			{Name: "Lost", Type: models.StageTypeLost},
		},
		DealValueMin:         2000,
		DealValueMax:         250000,
		DealValueAvg:         22000,
		WhaleRatio:           0.08,
		WinRate:              0.35,
		ActivitiesPerContact: 4.0,
		ContactSampleRatio:   0.7,
		DealActivityBias:     0.75,
		ActivityTypes: []models.ActivityType{
			models.ActivityTypeCall, models.ActivityTypeEmail,
			models.ActivityTypeMeeting, models.ActivityTypeNote,
		},
		ActivityTypeWeights: []float64{0.30, 0.30, 0.30, 0.10},
		CompanyNamePatterns: []string{"Consulting", "Advisory", "Solutions", "Strategy"},
		TagNames:            []string{"Referral", "RFP", "Retainer", "Workshop"},
		TeamSize:            4,
	})

	register(Template{
		Code: "realestate",
		Name: "Real Estate",
		Stages: []StageDef{
			{Name: "New Inquiry", Type: models.StageTypeOpen, Probability: 0.40},
			{Name: "Viewing Booked", Type: models.StageTypeOpen, Probability: 0.30},
			{Name: "Offer Made", Type: models.StageTypeOpen, Probability: 0.20},
			{Name: "Under Contract", Type: models.StageTypeOpen, Probability: 0.10},
			{Name: "Sold", Type: models.StageTypeWon},
			{Name: "Fell Through", Type: models.StageTypeLost},
		},
		DealValueMin:         90000,
		DealValueMax:         2500000,
		DealValueAvg:         420000,
		WhaleRatio:           0.04,
		WinRate:              0.22,
		ActivitiesPerContact: 5.0,
		ContactSampleRatio:   0.8,
		DealActivityBias:     0.6,
		ActivityTypes: []models.ActivityType{
			models.ActivityTypeCall, models.ActivityTypeEmail,
			models.ActivityTypeMeeting, models.ActivityTypeTask,
		},
		ActivityTypeWeights: []float64{0.35, 0.25, 0.30, 0.10},
		CompanyNamePatterns: []string{"Realty", "Properties", "Estates", "Homes"},
		TagNames:            []string{"Buyer", "Seller", "Residential", "Commercial"},
		TeamSize:            6,
	})
}
