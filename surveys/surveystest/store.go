// Package surveystest provides an in-memory surveys.Store for tests.
package surveystest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilsahni7/TourDesk/models"
	"github.com/nikhilsahni7/TourDesk/surveys"
)

type pair struct {
	surveyID uint
	userID   uint
}

type state struct {
	responses map[uint]models.SurveyResponse
	answers   map[uint]models.QuestionResponse
	nextResp  uint
	nextAns   uint
}

func (s *state) clone() *state {
	c := &state{
		responses: make(map[uint]models.SurveyResponse, len(s.responses)),
		answers:   make(map[uint]models.QuestionResponse, len(s.answers)),
		nextResp:  s.nextResp,
		nextAns:   s.nextAns,
	}
	for k, v := range s.responses {
		c.responses[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	return c
}

// Store keeps surveys, questions and responses in memory. Transactions
// work on a copy that replaces the committed state only when fn succeeds.
type Store struct {
	mu        sync.Mutex
	surveys   map[uint]models.Survey
	questions map[uint][]models.SurveyQuestion
	users     map[uint]string
	committed *state
	races     map[pair]bool
	// Commits counts successful transactions.
	Commits int
}

func New() *Store {
	return &Store{
		surveys:   map[uint]models.Survey{},
		questions: map[uint][]models.SurveyQuestion{},
		users:     map[uint]string{},
		committed: &state{
			responses: map[uint]models.SurveyResponse{},
			answers:   map[uint]models.QuestionResponse{},
			nextResp:  1,
			nextAns:   1,
		},
		races: map[pair]bool{},
	}
}

// AddSurvey registers a survey together with its questions and options.
func (s *Store) AddSurvey(survey models.Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	questions := survey.Questions
	survey.Questions = nil
	s.surveys[survey.ID] = survey
	s.questions[survey.ID] = questions
}

// AddUser sets the display name used for a user's responses.
func (s *Store) AddUser(id uint, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = name
}

// RaceOnce makes the next new response for (surveyID, userID) lose an
// insert race: a competing response is committed and the insert fails with
// surveys.ErrDuplicateResponse.
func (s *Store) RaceOnce(surveyID, userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.races[pair{surveyID, userID}] = true
}

// SeedResponse commits a response and its answers directly.
func (s *Store) SeedResponse(r models.SurveyResponse) models.SurveyResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := r.Answers
	r.Answers = nil
	r.ID = s.committed.nextResp
	s.committed.nextResp++
	s.committed.responses[r.ID] = r
	for _, a := range answers {
		a.ID = s.committed.nextAns
		a.ResponseID = r.ID
		s.committed.nextAns++
		s.committed.answers[a.ID] = a
	}
	r.Answers = answers
	return r
}

// ResponsesFor returns the committed responses of a survey with their
// answers, ordered by id.
func (s *Store) ResponsesFor(surveyID uint) []models.SurveyResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SurveyResponse
	for _, r := range s.committed.responses {
		if r.SurveyID != surveyID {
			continue
		}
		r.Answers = answersOf(s.committed, r.ID)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func answersOf(st *state, responseID uint) []models.QuestionResponse {
	var out []models.QuestionResponse
	for _, a := range st.answers {
		if a.ResponseID == responseID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func findUserResponse(st *state, surveyID, userID uint) *models.SurveyResponse {
	for _, r := range st.responses {
		if r.SurveyID == surveyID && r.UserID != nil && *r.UserID == userID {
			found := r
			return &found
		}
	}
	return nil
}

func (s *Store) Survey(_ context.Context, id uint) (*models.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	survey, ok := s.surveys[id]
	if !ok {
		return nil, surveys.ErrSurveyNotFound
	}
	return &survey, nil
}

func (s *Store) SurveyByToken(_ context.Context, token uuid.UUID) (*models.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, survey := range s.surveys {
		if survey.PublicToken != nil && *survey.PublicToken == token {
			found := survey
			return &found, nil
		}
	}
	return nil, surveys.ErrSurveyNotFound
}

func (s *Store) Questions(_ context.Context, surveyID uint) ([]models.SurveyQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.SurveyQuestion(nil), s.questions[surveyID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) UserResponse(_ context.Context, surveyID, userID uint) (*models.SurveyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := findUserResponse(s.committed, surveyID, userID)
	if r != nil {
		r.Answers = answersOf(s.committed, r.ID)
	}
	return r, nil
}

func (s *Store) Responses(_ context.Context, surveyID uint) ([]surveys.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []surveys.ResponseRecord
	for _, r := range s.committed.responses {
		if r.SurveyID != surveyID {
			continue
		}
		name := "Anonymous"
		if r.UserID != nil && s.users[*r.UserID] != "" {
			name = s.users[*r.UserID]
		} else if r.RespondentName != nil {
			name = *r.RespondentName
		}
		out = append(out, surveys.ResponseRecord{
			ID:             r.ID,
			UserID:         r.UserID,
			IsComplete:     r.IsComplete,
			StartedAt:      r.StartedAt,
			SubmittedAt:    r.SubmittedAt,
			RespondentName: name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Answers(_ context.Context, surveyID uint) ([]models.QuestionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QuestionResponse
	for _, a := range s.committed.answers {
		if r, ok := s.committed.responses[a.ResponseID]; ok && r.SurveyID == surveyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InTx(_ context.Context, fn func(tx surveys.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s, st: s.committed.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.committed = tx.st
	s.Commits++
	return nil
}

type memTx struct {
	store *Store
	st    *state
}

func (t *memTx) UserResponse(surveyID, userID uint) (*models.SurveyResponse, error) {
	return findUserResponse(t.st, surveyID, userID), nil
}

func (t *memTx) CreateResponse(r *models.SurveyResponse) error {
	if r.UserID != nil {
		key := pair{r.SurveyID, *r.UserID}
		if t.store.races[key] {
			delete(t.store.races, key)
			winner := models.SurveyResponse{
				ID:        t.store.committed.nextResp,
				SurveyID:  r.SurveyID,
				UserID:    r.UserID,
				StartedAt: r.StartedAt,
			}
			t.store.committed.nextResp++
			t.store.committed.responses[winner.ID] = winner
			return surveys.ErrDuplicateResponse
		}
		if findUserResponse(t.st, r.SurveyID, *r.UserID) != nil {
			return surveys.ErrDuplicateResponse
		}
	}
	r.ID = t.st.nextResp
	t.st.nextResp++
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	stored := *r
	stored.Answers = nil
	t.st.responses[r.ID] = stored
	return nil
}

func (t *memTx) UpdateResponse(r *models.SurveyResponse) error {
	stored, ok := t.st.responses[r.ID]
	if !ok {
		return surveys.ErrSurveyNotFound
	}
	stored.IsComplete = r.IsComplete
	stored.SubmittedAt = r.SubmittedAt
	stored.Metadata = r.Metadata
	stored.UpdatedAt = time.Now()
	t.st.responses[r.ID] = stored
	return nil
}

func (t *memTx) DeleteAnswers(responseID uint, questionIDs []uint) error {
	drop := make(map[uint]bool, len(questionIDs))
	for _, id := range questionIDs {
		drop[id] = true
	}
	for id, a := range t.st.answers {
		if a.ResponseID != responseID {
			continue
		}
		if questionIDs == nil || drop[a.QuestionID] {
			delete(t.st.answers, id)
		}
	}
	return nil
}

func (t *memTx) InsertAnswers(rows []models.QuestionResponse) error {
	for i := range rows {
		for _, a := range t.st.answers {
			if a.ResponseID == rows[i].ResponseID && a.QuestionID == rows[i].QuestionID {
				return surveys.ErrInvalidAnswer
			}
		}
		rows[i].ID = t.st.nextAns
		t.st.nextAns++
		t.st.answers[rows[i].ID] = rows[i]
	}
	return nil
}
