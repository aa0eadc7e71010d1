package handler

import (
	"context"
	"net/http"

	"sleep-better/internal/domain"
	"sleep-better/internal/middleware"
	"sleep-better/internal/service"
	"sleep-better/internal/web"
)

// Predictor is the part of the backend that is called with the session token.
type Predictor interface {
	Predict(ctx context.Context, token string, answers domain.SurveyAnswers) (*domain.Prediction, error)
	UserStats(ctx context.Context, token string) (*domain.SleepStats, error)
}

// PageHandler serves the protected pages
type PageHandler struct {
	pages     *web.Renderer
	predictor Predictor
}

// NewPageHandler creates a new page handler
func NewPageHandler(pages *web.Renderer, predictor Predictor) *PageHandler {
	return &PageHandler{
		pages:     pages,
		predictor: predictor,
	}
}

// pageData fills in the fields every page needs from the request.
func pageData(r *http.Request, title string, content any) web.PageData {
	data := web.PageData{
		Title:     title,
		CSRFToken: middleware.GetCSRFToken(r.Context()),
		Content:   content,
	}
	if user, ok := currentUser(r); ok {
		data.User = &user
	}
	return data
}

// Home renders the empty questionnaire.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, web.PageHome, pageData(r, "Sleep Quality Predictor", web.NewSurveyContent(nil, nil)))
}

// Predict submits the questionnaire and renders the prediction below it.
func (h *PageHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := pageData(r, "Sleep Quality Predictor", web.NewSurveyContent(nil, nil))
		data.Error = "Invalid form submission"
		h.pages.Render(w, http.StatusBadRequest, web.PageHome, data)
		return
	}

	content := web.NewSurveyContent(r.PostForm, nil)

	answers, err := service.ParseSurvey(r.PostForm)
	if err != nil {
		status, msg := failure(err)
		data := pageData(r, "Sleep Quality Predictor", content)
		data.Error = msg
		h.pages.Render(w, status, web.PageHome, data)
		return
	}

	token, ok := sessionToken(r)
	if !ok {
		http.Redirect(w, r, domain.RouteLogin, http.StatusSeeOther)
		return
	}

	prediction, err := h.predictor.Predict(r.Context(), token, answers)
	if err != nil {
		logFailure(r, "predict", err)
		status, msg := failure(err)
		data := pageData(r, "Sleep Quality Predictor", content)
		data.Error = msg
		h.pages.Render(w, status, web.PageHome, data)
		return
	}

	content.Prediction = prediction
	h.pages.Render(w, http.StatusOK, web.PageHome, pageData(r, "Sleep Quality Predictor", content))
}

// Dashboard renders the signed-in user's statistics.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		http.Redirect(w, r, domain.RouteLogin, http.StatusSeeOther)
		return
	}

	stats, err := h.predictor.UserStats(r.Context(), token)
	if err != nil {
		logFailure(r, "user stats", err)
		status, msg := failure(err)
		data := pageData(r, "Dashboard", web.DashboardContent{})
		data.Error = msg
		h.pages.Render(w, status, web.PageDashboard, data)
		return
	}

	h.pages.Render(w, http.StatusOK, web.PageDashboard, pageData(r, "Dashboard", web.DashboardContent{Stats: stats}))
}

// Diet renders the static diet routine.
func (h *PageHandler) Diet(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, web.PageDiet, pageData(r, "Diet Plan", web.DietContent{
		Sections: web.DietRoutine,
		Tips:     web.DietTips,
	}))
}
