package service

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleep-better/internal/domain"
	"sleep-better/internal/testutil"
)

func TestParseSurvey_Valid(t *testing.T) {
	form := url.Values{"Q1": {" 6.5 "}, "Q4": {"3"}, "Q5": {"0"}, "Q6": {"2"}}

	a, err := ParseSurvey(form)
	require.NoError(t, err)
	assert.Equal(t, domain.SurveyAnswers{HoursOfSleep: 6.5, OverallQuality: 3, MedicineUse: 0, DaytimeSleepiness: 2}, a)
}

func TestParseSurvey_RoundTripsFixture(t *testing.T) {
	want := testutil.NewTestSurvey(testutil.WithHours(8))

	got, err := ParseSurvey(testutil.SurveyForm(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseSurvey_Invalid(t *testing.T) {
	base := func() url.Values {
		return url.Values{"Q1": {"7"}, "Q4": {"1"}, "Q5": {"1"}, "Q6": {"1"}}
	}

	tests := []struct {
		name      string
		mutate    func(url.Values)
		wantField string
	}{
		{"missing_hours", func(v url.Values) { v.Del("Q1") }, "Q1"},
		{"non_numeric_hours", func(v url.Values) { v.Set("Q1", "lots") }, "Q1"},
		{"negative_hours", func(v url.Values) { v.Set("Q1", "-1") }, "Q1"},
		{"too_many_hours", func(v url.Values) { v.Set("Q1", "24.1") }, "Q1"},
		{"nan_hours", func(v url.Values) { v.Set("Q1", "NaN") }, "Q1"},
		{"missing_quality", func(v url.Values) { v.Del("Q4") }, "Q4"},
		{"quality_out_of_range", func(v url.Values) { v.Set("Q4", "4") }, "Q4"},
		{"medicine_negative", func(v url.Values) { v.Set("Q5", "-1") }, "Q5"},
		{"sleepiness_not_integer", func(v url.Values) { v.Set("Q6", "1.5") }, "Q6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := base()
			tt.mutate(form)

			_, err := ParseSurvey(form)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidSurvey)

			var se *domain.SurveyError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestValidateSurvey_Bounds(t *testing.T) {
	assert.NoError(t, ValidateSurvey(domain.SurveyAnswers{HoursOfSleep: 0}))
	assert.NoError(t, ValidateSurvey(domain.SurveyAnswers{HoursOfSleep: 24, OverallQuality: 3, MedicineUse: 3, DaytimeSleepiness: 3}))
}
