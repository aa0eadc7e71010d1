package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sleep-better/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// NewTestCredentials returns credentials with a unique token and username.
func NewTestCredentials() *domain.Credentials {
	return &domain.Credentials{
		Token:    nextID("token"),
		Username: nextID("sleeper"),
	}
}

// SurveyOption customizes a survey fixture
type SurveyOption func(*domain.SurveyAnswers)

// NewTestSurvey returns valid questionnaire answers.
func NewTestSurvey(opts ...SurveyOption) domain.SurveyAnswers {
	a := domain.SurveyAnswers{
		HoursOfSleep:      7.5,
		OverallQuality:    2,
		MedicineUse:       0,
		DaytimeSleepiness: 1,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithHours sets the hours-of-sleep answer
func WithHours(h float64) SurveyOption {
	return func(a *domain.SurveyAnswers) {
		a.HoursOfSleep = h
	}
}

// SurveyForm returns the form encoding of a.
func SurveyForm(a domain.SurveyAnswers) map[string][]string {
	return map[string][]string{
		"Q1": {fmt.Sprintf("%g", a.HoursOfSleep)},
		"Q4": {fmt.Sprint(a.OverallQuality)},
		"Q5": {fmt.Sprint(a.MedicineUse)},
		"Q6": {fmt.Sprint(a.DaytimeSleepiness)},
	}
}

// NewTestPrediction returns a backend prediction with the stock recommendations.
func NewTestPrediction(label string) *domain.Prediction {
	p := &domain.Prediction{SleepQuality: label}
	if label == domain.GoodSleep {
		p.Recommendations = []string{"Your sleep quality is good, keep it up!", "Maintain your healthy sleep habits."}
	} else {
		p.Recommendations = []string{"Try to improve your sleep routine.", "Consider reducing screen time before bed."}
	}
	return p
}

// NewTestStats returns a small prediction history.
func NewTestStats() *domain.SleepStats {
	return &domain.SleepStats{
		GoodSleepCount: 3,
		BadSleepCount:  1,
		AvgScores:      domain.AverageScores{Q1: 7.1, Q4: 2.25, Q5: 0.5, Q6: 1},
	}
}

// Clock is a settable time source for expiry tests.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{t: time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC)}
}

// Now returns the current clock time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
