package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"sleep-better/internal/domain"
	"sleep-better/internal/service"
)

const maxRequestBody = 64 << 10

// APIHandler serves the JSON API. It sits outside the route guard, so every
// endpoint that calls the backend checks the session itself.
type APIHandler struct {
	predictor   Predictor
	chatService *service.ChatService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(predictor Predictor, chatService *service.ChatService) *APIHandler {
	return &APIHandler{
		predictor:   predictor,
		chatService: chatService,
	}
}

// SessionResponse reports the caller's session
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// SurveyRequest is the JSON form of the questionnaire. Answers are pointers
// so a missing field is told apart from a zero answer.
type SurveyRequest struct {
	Q1 *float64 `json:"Q1"`
	Q4 *int     `json:"Q4"`
	Q5 *int     `json:"Q5"`
	Q6 *int     `json:"Q6"`
}

// ChatRequest is one message for the assistant
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReplyResponse is one assistant turn
type ChatReplyResponse struct {
	Content string   `json:"content"`
	Options []string `json:"options,omitempty"`
}

var errMissingAnswer = errors.New("all of Q1, Q4, Q5 and Q6 are required")

func (req SurveyRequest) answers() (domain.SurveyAnswers, error) {
	if req.Q1 == nil || req.Q4 == nil || req.Q5 == nil || req.Q6 == nil {
		return domain.SurveyAnswers{}, errMissingAnswer
	}
	a := domain.SurveyAnswers{
		HoursOfSleep:      *req.Q1,
		OverallQuality:    *req.Q4,
		MedicineUse:       *req.Q5,
		DaytimeSleepiness: *req.Q6,
	}
	return a, service.ValidateSurvey(a)
}

// Session reports whether a session token is persisted and for whom.
func (h *APIHandler) Session(w http.ResponseWriter, r *http.Request) {
	_, authenticated := sessionToken(r)
	resp := SessionResponse{Authenticated: authenticated}
	if user, ok := currentUser(r); ok && authenticated {
		resp.Username = user.Username
	}
	writeJSON(w, http.StatusOK, resp)
}

// Predict relays questionnaire answers to the prediction model.
func (h *APIHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req SurveyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	answers, err := req.answers()
	if errors.Is(err, errMissingAnswer) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		_, msg := failure(err)
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}

	token, ok := sessionToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	prediction, err := h.predictor.Predict(r.Context(), token, answers)
	if err != nil {
		logFailure(r, "predict", err)
		status, msg := failure(err)
		writeJSONError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

// Stats returns the signed-in user's statistics.
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	stats, err := h.predictor.UserStats(r.Context(), token)
	if err != nil {
		logFailure(r, "user stats", err)
		status, msg := failure(err)
		writeJSONError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Chat answers one message, expanding option commands.
func (h *APIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, ok := sessionToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, _ := currentUser(r)

	reply, err := h.chatService.Ask(r.Context(), token, user.Username, req.Message)
	if err != nil {
		logFailure(r, "chat", err)
		status, msg := failure(err)
		if errors.Is(err, domain.ErrInvalidInput) {
			msg = "Message must be between 1 and 1000 characters, or a valid option"
		}
		writeJSONError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, ChatReplyResponse{Content: reply.Content, Options: reply.Options})
}

// ChatOptions returns the greeting and the canned prompts.
func (h *APIHandler) ChatOptions(w http.ResponseWriter, r *http.Request) {
	greeting := h.chatService.Greeting()
	writeJSON(w, http.StatusOK, ChatReplyResponse{Content: greeting.Content, Options: greeting.Options})
}

// decodeJSON reads a JSON body into v. It writes the error response and
// returns false when the body is not acceptable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
