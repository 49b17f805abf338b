package mockidentity

import (
	"fmt"
	"math"

	"github.com/jrsteele09/kaizen-client/ideas"
)

const hourlyRate = 60.00

// Working occurrences per month for each frequency unit.
var unitMultipliers = map[ideas.FrequencyUnit]float64{
	ideas.FrequencyDay:   22,
	ideas.FrequencyWeek:  4,
	ideas.FrequencyMonth: 1,
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateSurvey derives the monthly time and money an idea would save.
func CalculateSurvey(in ideas.SurveyInput) ideas.Survey {
	multiplier, ok := unitMultipliers[in.FrequencyUnit]
	if !ok {
		multiplier = 1
	}
	totalMinutes := float64(in.FrequencyValue) * float64(in.AffectedPeople) * float64(in.TimeLostMinutes) * multiplier
	hours := round2(totalMinutes / 60)
	return ideas.Survey{
		SurveyInput:               in,
		EstimatedTimeSavingsHours: hours,
		EstimatedFinancialSavings: fmt.Sprintf("%.2f", round2(hours*hourlyRate)),
	}
}

func validateSurvey(in ideas.SurveyInput) error {
	if _, ok := unitMultipliers[in.FrequencyUnit]; !ok {
		return badRequest(fmt.Sprintf("%q is not a valid choice.", in.FrequencyUnit))
	}
	if in.FrequencyValue <= 0 || in.AffectedPeople <= 0 || in.TimeLostMinutes <= 0 {
		return badRequest("frequency_value, affected_people and time_lost_minutes must be positive")
	}
	return nil
}
