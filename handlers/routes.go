package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/metrics"
	"github.com/nikhilsahni7/TourDesk/models"
)

// Router registers every route on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logger.Middleware, metrics.Middleware)

	staff := []models.Role{models.RoleAdmin, models.RoleGuide}
	admin := models.RoleAdmin
	authed := h.auth.Require

	// Auth routes
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/auth/me", authed(h.CurrentUser)).Methods("GET")
	r.HandleFunc("/users", authed(h.CreateUser, admin)).Methods("POST")

	// Operational
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Tours
	r.HandleFunc("/tours/{id}/status", authed(h.AdvanceTourStatus, staff...)).Methods("PATCH")

	// Surveys
	r.HandleFunc("/surveys/{id}/submit", authed(h.SubmitSurvey)).Methods("POST")
	r.HandleFunc("/surveys/{id}/save-progress", authed(h.SaveProgress)).Methods("POST")
	r.HandleFunc("/surveys/{id}/my-response", authed(h.MyResponse)).Methods("GET")
	r.HandleFunc("/surveys/{id}/stats", authed(h.SurveyStats, staff...)).Methods("GET")
	r.HandleFunc("/surveys/{id}/aggregated-responses", authed(h.AggregatedResponses, staff...)).Methods("GET")
	r.HandleFunc("/surveys/{id}/export", authed(h.ExportResponses, staff...)).Methods("GET")
	r.HandleFunc("/surveys/{id}/status", authed(h.UpdateSurveyStatus, admin)).Methods("PATCH")
	r.HandleFunc("/surveys/{id}/public-access", authed(h.EnablePublicAccess, admin)).Methods("POST")
	r.HandleFunc("/surveys/{id}/public-access", authed(h.DisablePublicAccess, admin)).Methods("DELETE")

	// Public surveys
	r.HandleFunc("/public/surveys/{token}", h.public.middleware(h.PublicSurvey)).Methods("GET")
	r.HandleFunc("/public/surveys/{token}/submit", h.public.middleware(h.SubmitPublicSurvey)).Methods("POST")

	// Notes
	r.HandleFunc("/activities/{id}/notes", authed(h.CreateNote)).Methods("POST")
	r.HandleFunc("/notes/{id}", authed(h.UpdateNote)).Methods("PUT")
	r.HandleFunc("/notes/{id}", authed(h.DeleteNote)).Methods("DELETE")

	// Discussions
	r.HandleFunc("/tours/{id}/discussions", authed(h.CreateDiscussion)).Methods("POST")
	r.HandleFunc("/discussions/{id}", authed(h.UpdateDiscussion)).Methods("PUT")
	r.HandleFunc("/discussions/{id}", authed(h.DeleteDiscussion)).Methods("DELETE")
	r.HandleFunc("/discussions/{id}/messages", authed(h.CreateMessage)).Methods("POST")
	r.HandleFunc("/messages/{id}", authed(h.UpdateMessage)).Methods("PUT")
	r.HandleFunc("/messages/{id}", authed(h.DeleteMessage)).Methods("DELETE")
	r.HandleFunc("/messages/{id}/reactions", authed(h.AddReaction)).Methods("POST")
	r.HandleFunc("/messages/{id}/reactions/{emoji}", authed(h.RemoveReaction)).Methods("DELETE")

	// Discussion teams
	r.HandleFunc("/activities/{id}/teams", authed(h.CreateTeam, staff...)).Methods("POST")
	r.HandleFunc("/teams/{id}", authed(h.UpdateTeam, staff...)).Methods("PUT")
	r.HandleFunc("/teams/{id}", authed(h.DeleteTeam, staff...)).Methods("DELETE")
	r.HandleFunc("/teams/{id}/notes", authed(h.CreateTeamNote)).Methods("POST")
	r.HandleFunc("/team-notes/{id}", authed(h.UpdateTeamNote)).Methods("PUT")
	r.HandleFunc("/team-notes/{id}", authed(h.DeleteTeamNote)).Methods("DELETE")

	// Activity questions
	r.HandleFunc("/activities/{id}/questions", authed(h.CreateActivityQuestion)).Methods("POST")
	r.HandleFunc("/activity-questions/{id}", authed(h.UpdateActivityQuestion)).Methods("PUT")
	r.HandleFunc("/activity-questions/{id}", authed(h.DeleteActivityQuestion)).Methods("DELETE")
	r.HandleFunc("/activities/{id}/discussion-questions", authed(h.CreateDiscussionQuestion, staff...)).Methods("POST")
	r.HandleFunc("/discussion-questions/{id}", authed(h.UpdateDiscussionQuestion, staff...)).Methods("PUT")
	r.HandleFunc("/discussion-questions/{id}", authed(h.DeleteDiscussionQuestion, staff...)).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	return r
}
