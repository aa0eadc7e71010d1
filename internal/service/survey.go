package service

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"sleep-better/internal/domain"
)

const maxHoursOfSleep = 24

// ParseSurvey reads the questionnaire form fields Q1, Q4, Q5 and Q6.
func ParseSurvey(form url.Values) (domain.SurveyAnswers, error) {
	var answers domain.SurveyAnswers

	hours, err := strconv.ParseFloat(strings.TrimSpace(form.Get("Q1")), 64)
	if err != nil {
		return answers, &domain.SurveyError{Field: "Q1", Reason: "hours of sleep must be a number"}
	}
	answers.HoursOfSleep = hours

	choices := []struct {
		field string
		dst   *int
	}{
		{"Q4", &answers.OverallQuality},
		{"Q5", &answers.MedicineUse},
		{"Q6", &answers.DaytimeSleepiness},
	}
	for _, c := range choices {
		v, err := strconv.Atoi(strings.TrimSpace(form.Get(c.field)))
		if err != nil {
			return answers, &domain.SurveyError{Field: c.field, Reason: "an option must be selected"}
		}
		*c.dst = v
	}

	return answers, ValidateSurvey(answers)
}

// ValidateSurvey checks answer ranges: 0-24 hours, options 0-3.
func ValidateSurvey(a domain.SurveyAnswers) error {
	if math.IsNaN(a.HoursOfSleep) || a.HoursOfSleep < 0 || a.HoursOfSleep > maxHoursOfSleep {
		return &domain.SurveyError{Field: "Q1", Reason: "hours of sleep must be between 0 and 24"}
	}
	if !validChoice(a.OverallQuality) {
		return &domain.SurveyError{Field: "Q4", Reason: "unknown option"}
	}
	if !validChoice(a.MedicineUse) {
		return &domain.SurveyError{Field: "Q5", Reason: "unknown option"}
	}
	if !validChoice(a.DaytimeSleepiness) {
		return &domain.SurveyError{Field: "Q6", Reason: "unknown option"}
	}
	return nil
}

func validChoice(v int) bool {
	return v >= 0 && v <= 3
}
