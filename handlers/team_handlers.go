package handlers

import (
	"net/http"

	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/nikhilsahni7/TourDesk/models"
)

type teamInput struct {
	Name string `json:"name"`
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	activityID, err := h.guardParent(r, gate.KindActivity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input teamInput
	if !decodeBody(w, r, &input) || !required(w, "name", input.Name) {
		return
	}
	h.create(w, r, &models.DiscussionTeam{ActivityID: activityID, Name: input.Name})
}

func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var team models.DiscussionTeam
	if err := h.loadForChange(r, gate.KindDiscussionTeam, &team, nil); err != nil {
		writeError(w, r, err)
		return
	}
	var input teamInput
	if !decodeBody(w, r, &input) || !required(w, "name", input.Name) {
		return
	}
	team.Name = input.Name
	h.save(w, r, &team)
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	var team models.DiscussionTeam
	if err := h.loadForChange(r, gate.KindDiscussionTeam, &team, nil); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &team)
}

func (h *Handler) CreateTeamNote(w http.ResponseWriter, r *http.Request) {
	teamID, err := h.guardParent(r, gate.KindDiscussionTeam)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input contentInput
	if !decodeBody(w, r, &input) || !required(w, "content", input.Content) {
		return
	}
	h.create(w, r, &models.DiscussionTeamNote{TeamID: teamID, AuthorID: caller(r).UserID, Content: input.Content})
}

func (h *Handler) UpdateTeamNote(w http.ResponseWriter, r *http.Request) {
	var note models.DiscussionTeamNote
	if err := h.loadForChange(r, gate.KindDiscussionTeamNote, &note, func() uint { return note.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	var input contentInput
	if !decodeBody(w, r, &input) || !required(w, "content", input.Content) {
		return
	}
	note.Content = input.Content
	h.save(w, r, &note)
}

func (h *Handler) DeleteTeamNote(w http.ResponseWriter, r *http.Request) {
	var note models.DiscussionTeamNote
	if err := h.loadForChange(r, gate.KindDiscussionTeamNote, &note, func() uint { return note.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &note)
}
