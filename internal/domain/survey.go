package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidSurvey = errors.New("invalid survey answers")

// Sleep quality labels returned by the prediction service.
const (
	GoodSleep = "Good Sleep"
	BadSleep  = "Bad Sleep"
)

// SurveyAnswers are the four questionnaire answers sent to the prediction model.
// JSON field names follow the questionnaire numbering used by the model.
type SurveyAnswers struct {
	HoursOfSleep      float64 `json:"Q1"`
	OverallQuality    int     `json:"Q4"`
	MedicineUse       int     `json:"Q5"`
	DaytimeSleepiness int     `json:"Q6"`
}

// Prediction is the model output for one survey.
type Prediction struct {
	SleepQuality    string   `json:"sleep_quality"`
	Recommendations []string `json:"recommendations"`
}

// IsGood reports whether the prediction is a good-sleep outcome.
func (p Prediction) IsGood() bool {
	return p.SleepQuality == GoodSleep
}

// AverageScores holds per-question averages across a user's surveys.
type AverageScores struct {
	Q1 float64 `json:"Q1"`
	Q4 float64 `json:"Q4"`
	Q5 float64 `json:"Q5"`
	Q6 float64 `json:"Q6"`
}

// SleepStats is the dashboard aggregate computed by the backend.
type SleepStats struct {
	GoodSleepCount int           `json:"good_sleep_count"`
	BadSleepCount  int           `json:"bad_sleep_count"`
	AvgScores      AverageScores `json:"avg_scores"`
}

// Total returns the number of surveys counted.
func (s SleepStats) Total() int {
	return s.GoodSleepCount + s.BadSleepCount
}

// GoodPercent returns the share of good-sleep results, 0 when there are none.
func (s SleepStats) GoodPercent() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.GoodSleepCount) * 100 / float64(s.Total())
}

// Choice is one option of a multiple-choice survey question.
type Choice struct {
	Value int
	Label string
}

var QualityChoices = []Choice{
	{0, "Very good"},
	{1, "Fairly good"},
	{2, "Fairly bad"},
	{3, "Very bad"},
}

var FrequencyChoices = []Choice{
	{0, "Not during the past month"},
	{1, "Less than once a week"},
	{2, "Once or twice a week"},
	{3, "Three or more times a week"},
}

// SurveyError reports which field failed validation.
type SurveyError struct {
	Field  string
	Reason string
}

func (e *SurveyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *SurveyError) Unwrap() error {
	return ErrInvalidSurvey
}
