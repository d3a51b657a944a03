package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/models"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"go.uber.org/zap"
)

func (h *Handler) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sub surveys.Submission
	if !decodeBody(w, r, &sub) {
		return
	}

	resp, err := h.surveys.Submit(r.Context(), surveyID, caller(r), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"response_id": resp.ID,
		"message":     "Survey submitted successfully",
	})
}

func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sub surveys.Submission
	if !decodeBody(w, r, &sub) {
		return
	}

	resp, err := h.surveys.SaveProgress(r.Context(), surveyID, caller(r), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response_id": resp.ID,
		"is_complete": resp.IsComplete,
		"message":     "Progress saved",
	})
}

func (h *Handler) MyResponse(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	mine, err := h.surveys.MyResponse(r.Context(), surveyID, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if mine == nil {
		writeMessage(w, http.StatusNotFound, "No response yet")
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

func (h *Handler) PublicSurvey(w http.ResponseWriter, r *http.Request) {
	survey, questions, err := h.surveys.SurveyForToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	survey.Questions = questions
	writeJSON(w, http.StatusOK, survey)
}

func (h *Handler) SubmitPublicSurvey(w http.ResponseWriter, r *http.Request) {
	var sub surveys.AnonymousSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	resp, err := h.surveys.SubmitAnonymous(r.Context(), mux.Vars(r)["token"], sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"response_id": resp.ID,
		"message":     "Thank you for your response",
	})
}

func (h *Handler) UpdateSurveyStatus(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		Status models.SurveyStatus `json:"status"`
	}
	if !decodeBody(w, r, &input) {
		return
	}

	var survey models.Survey
	if err := h.db.WithContext(r.Context()).First(&survey, surveyID).Error; err != nil {
		writeError(w, r, err)
		return
	}
	if !survey.Status.CanMoveTo(input.Status) {
		writeMessage(w, http.StatusBadRequest, "Cannot change survey status from "+string(survey.Status)+" to "+string(input.Status))
		return
	}
	if err := h.db.WithContext(r.Context()).Model(&survey).Update("status", input.Status).Error; err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Survey status changed",
		zap.Uint("survey_id", survey.ID),
		zap.String("status", string(input.Status)),
	)
	writeJSON(w, http.StatusOK, survey)
}

// EnablePublicAccess issues a fresh public token, invalidating any earlier
// link.
func (h *Handler) EnablePublicAccess(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		ExpiresInDays int `json:"expires_in_days"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &input) {
		return
	}
	if input.ExpiresInDays < 0 {
		writeMessage(w, http.StatusBadRequest, "expires_in_days must not be negative")
		return
	}

	var survey models.Survey
	if err := h.db.WithContext(r.Context()).First(&survey, surveyID).Error; err != nil {
		writeError(w, r, err)
		return
	}
	token := uuid.New()
	var expires *time.Time
	if input.ExpiresInDays > 0 {
		at := h.now().Add(time.Duration(input.ExpiresInDays) * 24 * time.Hour)
		expires = &at
	}
	err = h.db.WithContext(r.Context()).Model(&survey).Updates(map[string]interface{}{
		"allow_public_access": true,
		"public_token":        token,
		"expires_at":          expires,
	}).Error
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"public_token": token,
		"expires_at":   expires,
	})
}

func (h *Handler) DisablePublicAccess(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	result := h.db.WithContext(r.Context()).Model(&models.Survey{}).
		Where("id = ?", surveyID).
		Updates(map[string]interface{}{"allow_public_access": false, "public_token": nil})
	if result.Error != nil {
		writeError(w, r, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, r, surveys.ErrSurveyNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
