package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vqiu25/inky/internal/auth"
	"github.com/vqiu25/inky/internal/database"
	"github.com/vqiu25/inky/internal/models"
)

type createPhraseRequest struct {
	Text string `json:"text"`
}

// CreatePhraseHandler adds a phrase to the guessing pool. Requires an
// authenticated user; the creator is recorded.
func CreatePhraseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	userIDStr, err := auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user id in token", http.StatusForbidden)
		return
	}

	var req createPhraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		http.Error(w, "phrase text is required", http.StatusBadRequest)
		return
	}

	phrase := models.Phrase{Text: text, CreatedBy: userID}
	if err := database.CreatePhrase(r.Context(), &phrase); err != nil {
		http.Error(w, "failed to create phrase", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, phrase)
}

// ChoicePhrasesHandler returns n random phrases (default 3, max 10), the
// same pool draw the session offers its drawer.
func ChoicePhrasesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n := 3
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 10 {
			n = v
		}
	}
	phrases, err := database.LoadPhrases(r.Context(), n)
	if err != nil {
		http.Error(w, "failed to load phrases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"choices": phrases})
}

// ListPhrasesHandler returns the full phrase pool.
func ListPhrasesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	phrases, err := database.ListPhrases(r.Context())
	if err != nil {
		http.Error(w, "failed to list phrases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, phrases)
}
