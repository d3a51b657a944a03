package handlers

import (
	"net/http"

	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/models"
	"go.uber.org/zap"
)

// AdvanceTourStatus moves a tour one step along Draft, Pending, Completed.
func (h *Handler) AdvanceTourStatus(w http.ResponseWriter, r *http.Request) {
	tourID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		Status models.TourStatus `json:"status"`
	}
	if !decodeBody(w, r, &input) {
		return
	}

	var tour models.Tour
	if err := h.db.WithContext(r.Context()).First(&tour, tourID).Error; err != nil {
		writeError(w, r, err)
		return
	}
	next, ok := tour.Status.Next()
	if !ok || next != input.Status {
		writeMessage(w, http.StatusBadRequest, "Invalid status transition from "+string(tour.Status)+" to "+string(input.Status))
		return
	}
	if err := h.db.WithContext(r.Context()).Model(&tour).Update("status", next).Error; err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Tour status changed",
		zap.Uint("tour_id", tour.ID),
		zap.String("status", string(next)),
	)
	writeJSON(w, http.StatusOK, tour)
}
