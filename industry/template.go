// Package industry holds the pipeline/deal-shape templates the generators
// consume. One template per supported industry code, selected via ForCode.
package industry

import (
	"strings"

	"bitbucket.org/mmdatafocus/demodata_backend/models"
)

// StageDef describes one pipeline stage of a template.
type StageDef struct {
	Name        string
	Type        models.StageType
	Probability float64 // chance an open deal sits in this stage
}

// Template parameterizes deal values, win rates and activity volume for one
// industry.
type Template struct {
	Code string
	Name string

	Stages []StageDef

	DealValueMin float64
	DealValueMax float64
	DealValueAvg float64
	WhaleRatio   float64
	WinRate      float64

	// ActivitiesPerContact is the average count of activities generated per
	// sampled contact; ContactSampleRatio controls how many contacts get
	// activities at all; DealActivityBias is the share of activities linked
	// to a deal.
	ActivitiesPerContact float64
	ContactSampleRatio   float64
	DealActivityBias     float64

	ActivityTypes       []models.ActivityType
	ActivityTypeWeights []float64

	CompanyNamePatterns []string
	TagNames            []string
	TeamSize            int
}

// OpenStages returns the stage defs an open deal may occupy, with weights.
func (t Template) OpenStages() (stages []StageDef, weights []float64) {
	for _, s := range t.Stages {
		if s.Type == models.StageTypeOpen {
			stages = append(stages, s)
			weights = append(weights, s.Probability)
		}
	}
	return stages, weights
}

var registry = map[string]Template{}

func register(t Template) {
	registry[strings.ToLower(t.Code)] = t
}

// ForCode returns the template for an industry code, defaulting to saas.
func ForCode(code string) Template {
	if t, ok := registry[strings.ToLower(strings.TrimSpace(code))]; ok {
		return t
	}
	return registry["saas"]
}

// SupportedIndustries lists registered industry codes.
func SupportedIndustries() []string {
	codes := make([]string, 0, len(registry))
	for c := range registry {
		codes = append(codes, c)
	}
	return codes
}
