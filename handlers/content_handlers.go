package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/nikhilsahni7/TourDesk/models"
	"gorm.io/gorm/clause"
)

// guardParent parses the parent id from the path and checks that its tour
// is still open, ahead of creating a child row.
func (h *Handler) guardParent(r *http.Request, kind gate.Kind) (uint, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}
	if err := h.gate.AssertMutable(r.Context(), kind, id); err != nil {
		return 0, err
	}
	return id, nil
}

// loadForChange checks the gate for (kind, id), loads the row into dst and,
// when authorOf is set, requires the caller to be its author or an admin.
func (h *Handler) loadForChange(r *http.Request, kind gate.Kind, dst interface{}, authorOf func() uint) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := h.gate.AssertMutable(r.Context(), kind, id); err != nil {
		return err
	}
	if err := h.db.WithContext(r.Context()).First(dst, id).Error; err != nil {
		return err
	}
	if authorOf != nil && !caller(r).CanModify(authorOf()) {
		return errNotAuthor
	}
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, row interface{}) {
	if err := h.db.WithContext(r.Context()).Create(row).Error; err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, row interface{}) {
	if err := h.db.WithContext(r.Context()).Save(row).Error; err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, row interface{}) {
	if err := h.db.WithContext(r.Context()).Delete(row).Error; err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func required(w http.ResponseWriter, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		writeMessage(w, http.StatusBadRequest, field+" is required")
		return false
	}
	return true
}

type contentInput struct {
	Content string `json:"content"`
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	activityID, err := h.guardParent(r, gate.KindActivity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input contentInput
	if !decodeBody(w, r, &input) || !required(w, "content", input.Content) {
		return
	}
	h.create(w, r, &models.Note{ActivityID: activityID, AuthorID: caller(r).UserID, Content: input.Content})
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var note models.Note
	if err := h.loadForChange(r, gate.KindNote, &note, func() uint { return note.AuthorID }); err != nil {
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

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	var note models.Note
	if err := h.loadForChange(r, gate.KindNote, &note, func() uint { return note.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &note)
}

type discussionInput struct {
	Title string `json:"title"`
}

func (h *Handler) CreateDiscussion(w http.ResponseWriter, r *http.Request) {
	tourID, err := h.guardParent(r, gate.KindTour)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input discussionInput
	if !decodeBody(w, r, &input) || !required(w, "title", input.Title) {
		return
	}
	h.create(w, r, &models.Discussion{TourID: tourID, CreatorID: caller(r).UserID, Title: input.Title})
}

func (h *Handler) UpdateDiscussion(w http.ResponseWriter, r *http.Request) {
	var d models.Discussion
	if err := h.loadForChange(r, gate.KindDiscussion, &d, func() uint { return d.CreatorID }); err != nil {
		writeError(w, r, err)
		return
	}
	var input discussionInput
	if !decodeBody(w, r, &input) || !required(w, "title", input.Title) {
		return
	}
	d.Title = input.Title
	h.save(w, r, &d)
}

func (h *Handler) DeleteDiscussion(w http.ResponseWriter, r *http.Request) {
	var d models.Discussion
	if err := h.loadForChange(r, gate.KindDiscussion, &d, func() uint { return d.CreatorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &d)
}

type messageInput struct {
	Body string `json:"body"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	discussionID, err := h.guardParent(r, gate.KindDiscussion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input messageInput
	if !decodeBody(w, r, &input) || !required(w, "body", input.Body) {
		return
	}
	h.create(w, r, &models.DiscussionMessage{DiscussionID: discussionID, AuthorID: caller(r).UserID, Body: input.Body})
}

func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var m models.DiscussionMessage
	if err := h.loadForChange(r, gate.KindDiscussionMessage, &m, func() uint { return m.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	var input messageInput
	if !decodeBody(w, r, &input) || !required(w, "body", input.Body) {
		return
	}
	m.Body = input.Body
	h.save(w, r, &m)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var m models.DiscussionMessage
	if err := h.loadForChange(r, gate.KindDiscussionMessage, &m, func() uint { return m.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &m)
}

// AddReaction is idempotent: reacting twice with the same emoji keeps one
// row.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	messageID, err := h.guardParent(r, gate.KindDiscussionMessage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		Emoji string `json:"emoji"`
	}
	if !decodeBody(w, r, &input) || !required(w, "emoji", input.Emoji) {
		return
	}
	reaction := models.MessageReaction{MessageID: messageID, UserID: caller(r).UserID, Emoji: input.Emoji}
	err = h.db.WithContext(r.Context()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reaction).Error
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reaction)
}

func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	messageID, err := h.guardParent(r, gate.KindDiscussionMessage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = h.db.WithContext(r.Context()).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, caller(r).UserID, mux.Vars(r)["emoji"]).
		Delete(&models.MessageReaction{}).Error
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateActivityQuestion(w http.ResponseWriter, r *http.Request) {
	activityID, err := h.guardParent(r, gate.KindActivity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		Question string `json:"question"`
	}
	if !decodeBody(w, r, &input) || !required(w, "question", input.Question) {
		return
	}
	h.create(w, r, &models.ActivityQuestion{ActivityID: activityID, AuthorID: caller(r).UserID, Question: input.Question})
}

// UpdateActivityQuestion lets the author reword a question and staff
// answer it.
func (h *Handler) UpdateActivityQuestion(w http.ResponseWriter, r *http.Request) {
	var q models.ActivityQuestion
	if err := h.loadForChange(r, gate.KindActivityQuestion, &q, nil); err != nil {
		writeError(w, r, err)
		return
	}
	var input struct {
		Question *string `json:"question"`
		Answer   *string `json:"answer"`
	}
	if !decodeBody(w, r, &input) {
		return
	}
	me := caller(r)
	if input.Question != nil {
		if !me.CanModify(q.AuthorID) {
			writeError(w, r, errNotAuthor)
			return
		}
		if !required(w, "question", *input.Question) {
			return
		}
		q.Question = *input.Question
	}
	if input.Answer != nil {
		if !me.HasRole(models.RoleAdmin, models.RoleGuide) {
			writeMessage(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		q.Answer = *input.Answer
	}
	h.save(w, r, &q)
}

func (h *Handler) DeleteActivityQuestion(w http.ResponseWriter, r *http.Request) {
	var q models.ActivityQuestion
	if err := h.loadForChange(r, gate.KindActivityQuestion, &q, func() uint { return q.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &q)
}

type discussionQuestionInput struct {
	Prompt     string `json:"prompt"`
	OrderIndex int    `json:"order_index"`
}

func (h *Handler) CreateDiscussionQuestion(w http.ResponseWriter, r *http.Request) {
	activityID, err := h.guardParent(r, gate.KindActivity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input discussionQuestionInput
	if !decodeBody(w, r, &input) || !required(w, "prompt", input.Prompt) {
		return
	}
	h.create(w, r, &models.DiscussionQuestion{
		ActivityID: activityID,
		AuthorID:   caller(r).UserID,
		Prompt:     input.Prompt,
		OrderIndex: input.OrderIndex,
	})
}

func (h *Handler) UpdateDiscussionQuestion(w http.ResponseWriter, r *http.Request) {
	var q models.DiscussionQuestion
	if err := h.loadForChange(r, gate.KindDiscussionQuestion, &q, func() uint { return q.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	var input discussionQuestionInput
	if !decodeBody(w, r, &input) || !required(w, "prompt", input.Prompt) {
		return
	}
	q.Prompt = input.Prompt
	q.OrderIndex = input.OrderIndex
	h.save(w, r, &q)
}

func (h *Handler) DeleteDiscussionQuestion(w http.ResponseWriter, r *http.Request) {
	var q models.DiscussionQuestion
	if err := h.loadForChange(r, gate.KindDiscussionQuestion, &q, func() uint { return q.AuthorID }); err != nil {
		writeError(w, r, err)
		return
	}
	h.remove(w, r, &q)
}
