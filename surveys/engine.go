// Package surveys records survey answers and summarises them.
//
// Authenticated callers hold at most one response per survey, which is
// created on first save and rewritten in place afterwards. Anonymous
// callers reach a survey through its public token and get a fresh response
// on every submission.
package surveys

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/metrics"
	"github.com/nikhilsahni7/TourDesk/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the engine's clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Submission is the body shared by the submit and save-progress endpoints.
type Submission struct {
	Responses []AnswerInput   `json:"responses"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// AnonymousSubmission is the body of a public token submission.
type AnonymousSubmission struct {
	RespondentEmail string          `json:"respondent_email"`
	RespondentName  string          `json:"respondent_name,omitempty"`
	Responses       []AnswerInput   `json:"responses"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

func (e *Engine) openSurvey(ctx context.Context, surveyID uint) (*models.Survey, []models.SurveyQuestion, error) {
	survey, err := e.store.Survey(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	if survey.Status != models.SurveyActive {
		return nil, nil, ErrSurveyClosed
	}
	questions, err := e.store.Questions(ctx, surveyID)
	if err != nil {
		return nil, nil, err
	}
	return survey, questions, nil
}

// retryDuplicate runs fn in a transaction. If the insert of a new response
// loses a race against a concurrent insert for the same user, the whole
// transaction is replayed once; the replay sees the winner's row and
// updates it.
func (e *Engine) retryDuplicate(ctx context.Context, fn func(tx Tx) error) error {
	err := e.store.InTx(ctx, fn)
	if !errors.Is(err, ErrDuplicateResponse) {
		return err
	}
	metrics.DuplicateRecoveries.Inc()
	logger.FromContext(ctx).Info("Concurrent survey submission, retrying as update")
	return e.store.InTx(ctx, fn)
}

// Submit records a final submission. Any earlier answers from the caller
// are replaced entirely and the response is marked complete.
func (e *Engine) Submit(ctx context.Context, surveyID uint, caller auth.Identity, sub Submission) (*models.SurveyResponse, error) {
	_, questions, err := e.openSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(questions, sub.Responses)
	if err != nil {
		return nil, err
	}
	if err := checkValues(questions, answers); err != nil {
		return nil, err
	}
	if err := checkRequired(questions, answers); err != nil {
		return nil, err
	}

	var saved *models.SurveyResponse
	err = e.retryDuplicate(ctx, func(tx Tx) error {
		now := e.now()
		existing, err := tx.UserResponse(surveyID, caller.UserID)
		if err != nil {
			return err
		}

		if existing == nil {
			userID := caller.UserID
			saved = &models.SurveyResponse{
				SurveyID:    surveyID,
				UserID:      &userID,
				IsComplete:  true,
				StartedAt:   now,
				SubmittedAt: &now,
				Metadata:    datatypes.JSON(sub.Metadata),
			}
			if err := tx.CreateResponse(saved); err != nil {
				return err
			}
		} else {
			saved = existing
			saved.IsComplete = true
			saved.SubmittedAt = &now
			if len(sub.Metadata) > 0 {
				saved.Metadata = datatypes.JSON(sub.Metadata)
			}
			if err := tx.UpdateResponse(saved); err != nil {
				return err
			}
			if err := tx.DeleteAnswers(saved.ID, nil); err != nil {
				return err
			}
		}

		saved.Answers = rowsFor(saved.ID, answers, now)
		return tx.InsertAnswers(saved.Answers)
	})
	if err != nil {
		return nil, err
	}

	metrics.SurveySubmissions.WithLabelValues("submit").Inc()
	logger.FromContext(ctx).Info("Survey submitted",
		zap.Uint("survey_id", surveyID),
		zap.Uint("user_id", caller.UserID),
		zap.Uint("response_id", saved.ID),
	)
	return saved, nil
}

// SaveProgress stores a partial set of answers. Only the questions named in
// this call are rewritten and the completion flag is left as it was.
func (e *Engine) SaveProgress(ctx context.Context, surveyID uint, caller auth.Identity, sub Submission) (*models.SurveyResponse, error) {
	_, questions, err := e.openSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(questions, sub.Responses)
	if err != nil {
		return nil, err
	}
	touched := make([]uint, 0, len(answers))
	for _, a := range answers {
		touched = append(touched, a.QuestionID)
	}

	var saved *models.SurveyResponse
	err = e.retryDuplicate(ctx, func(tx Tx) error {
		now := e.now()
		existing, err := tx.UserResponse(surveyID, caller.UserID)
		if err != nil {
			return err
		}

		if existing == nil {
			userID := caller.UserID
			saved = &models.SurveyResponse{
				SurveyID:  surveyID,
				UserID:    &userID,
				StartedAt: now,
				Metadata:  datatypes.JSON(sub.Metadata),
			}
			if err := tx.CreateResponse(saved); err != nil {
				return err
			}
		} else {
			saved = existing
			if len(sub.Metadata) > 0 {
				saved.Metadata = datatypes.JSON(sub.Metadata)
			}
			if err := tx.UpdateResponse(saved); err != nil {
				return err
			}
			if len(touched) > 0 {
				if err := tx.DeleteAnswers(saved.ID, touched); err != nil {
					return err
				}
			}
		}

		return tx.InsertAnswers(rowsFor(saved.ID, answers, now))
	})
	if err != nil {
		return nil, err
	}

	metrics.SurveySubmissions.WithLabelValues("save_progress").Inc()
	logger.FromContext(ctx).Debug("Survey progress saved",
		zap.Uint("survey_id", surveyID),
		zap.Uint("user_id", caller.UserID),
		zap.Int("answers", len(answers)),
	)
	return saved, nil
}

// SurveyForToken resolves a public token to its survey and questions,
// failing with ErrInvalidToken unless the survey currently accepts public
// responses.
func (e *Engine) SurveyForToken(ctx context.Context, token string) (*models.Survey, []models.SurveyQuestion, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	survey, err := e.store.SurveyByToken(ctx, parsed)
	if errors.Is(err, ErrSurveyNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if !survey.AcceptsPublicAt(e.now()) {
		return nil, nil, ErrInvalidToken
	}
	questions, err := e.store.Questions(ctx, survey.ID)
	if err != nil {
		return nil, nil, err
	}
	return survey, questions, nil
}

// SubmitAnonymous records a public submission. Every call creates a new
// response; there is no identity to deduplicate on.
func (e *Engine) SubmitAnonymous(ctx context.Context, token string, sub AnonymousSubmission) (*models.SurveyResponse, error) {
	email := strings.TrimSpace(sub.RespondentEmail)
	if email == "" {
		return nil, ErrEmailRequired
	}
	survey, questions, err := e.SurveyForToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	answers, err := decodeAnswers(questions, sub.Responses)
	if err != nil {
		return nil, err
	}
	if err := checkValues(questions, answers); err != nil {
		return nil, err
	}
	if err := checkRequired(questions, answers); err != nil {
		return nil, err
	}

	now := e.now()
	saved := &models.SurveyResponse{
		SurveyID:        survey.ID,
		IsAnonymous:     true,
		RespondentEmail: &email,
		IsComplete:      true,
		StartedAt:       now,
		SubmittedAt:     &now,
		Metadata:        datatypes.JSON(sub.Metadata),
	}
	if name := strings.TrimSpace(sub.RespondentName); name != "" {
		saved.RespondentName = &name
	}

	err = e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateResponse(saved); err != nil {
			return err
		}
		saved.Answers = rowsFor(saved.ID, answers, now)
		return tx.InsertAnswers(saved.Answers)
	})
	if err != nil {
		return nil, err
	}

	metrics.SurveySubmissions.WithLabelValues("anonymous").Inc()
	logger.FromContext(ctx).Info("Anonymous survey response recorded",
		zap.Uint("survey_id", survey.ID),
		zap.Uint("response_id", saved.ID),
	)
	return saved, nil
}

// MyResponse is the caller's stored response with answers in wire form.
type MyResponse struct {
	ResponseID  uint          `json:"response_id"`
	IsComplete  bool          `json:"is_complete"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Responses   []AnswerInput `json:"responses"`
}

// MyResponse returns the caller's response so a partial save can be
// resumed. It returns nil when the caller has not responded yet.
func (e *Engine) MyResponse(ctx context.Context, surveyID uint, caller auth.Identity) (*MyResponse, error) {
	if _, err := e.store.Survey(ctx, surveyID); err != nil {
		return nil, err
	}
	resp, err := e.store.UserResponse(ctx, surveyID, caller.UserID)
	if err != nil || resp == nil {
		return nil, err
	}
	questions, err := e.store.Questions(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.SurveyQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	out := &MyResponse{
		ResponseID:  resp.ID,
		IsComplete:  resp.IsComplete,
		StartedAt:   resp.StartedAt,
		SubmittedAt: resp.SubmittedAt,
		Responses:   []AnswerInput{},
	}
	for i := range resp.Answers {
		q, ok := byID[resp.Answers[i].QuestionID]
		if !ok {
			continue
		}
		if v := valueOf(q, &resp.Answers[i]); v != nil {
			out.Responses = append(out.Responses, v.input(q.ID))
		}
	}
	return out, nil
}
