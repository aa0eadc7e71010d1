package web

import (
	"net/url"
	"strconv"

	"sleep-better/internal/domain"
)

// SurveyContent backs the home page: the questionnaire, the previous input
// and the latest prediction.
type SurveyContent struct {
	QualityChoices   []domain.Choice
	FrequencyChoices []domain.Choice
	Form             url.Values
	Prediction       *domain.Prediction
}

func NewSurveyContent(form url.Values, prediction *domain.Prediction) SurveyContent {
	if form == nil {
		form = url.Values{}
	}
	return SurveyContent{
		QualityChoices:   domain.QualityChoices,
		FrequencyChoices: domain.FrequencyChoices,
		Form:             form,
		Prediction:       prediction,
	}
}

// Selected reports whether choice v was the submitted answer to field.
func (c SurveyContent) Selected(field string, v int) bool {
	return c.Form.Get(field) == strconv.Itoa(v)
}

// DashboardContent backs the statistics page. Stats is nil when the
// backend could not be reached.
type DashboardContent struct {
	Stats *domain.SleepStats
}

// DietContent backs the diet page.
type DietContent struct {
	Sections []DietSection
	Tips     []string
}

// AuthContent refills the login and register forms after an error.
type AuthContent struct {
	Username string
	Email    string
}
