package surveys

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilsahni7/TourDesk/models"
)

var (
	ErrSurveyNotFound    = errors.New("survey not found")
	ErrSurveyClosed      = errors.New("survey is not accepting responses")
	ErrInvalidToken      = errors.New("invalid or expired survey link")
	ErrEmailRequired     = errors.New("email is required for anonymous survey responses")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrDuplicateResponse = errors.New("duplicate survey response")
	ErrForbidden         = errors.New("insufficient permissions")
)

// ResponseRecord is the per-response data the statistics need, with the
// respondent's display name already resolved.
type ResponseRecord struct {
	ID             uint
	UserID         *uint
	IsComplete     bool
	StartedAt      time.Time
	SubmittedAt    *time.Time
	RespondentName string
}

// Store is the persistence the engine runs on.
type Store interface {
	Survey(ctx context.Context, id uint) (*models.Survey, error)
	SurveyByToken(ctx context.Context, token uuid.UUID) (*models.Survey, error)
	// Questions returns the survey's questions ordered by order_index,
	// each with its options.
	Questions(ctx context.Context, surveyID uint) ([]models.SurveyQuestion, error)
	// UserResponse returns the caller's response with its answers, or nil
	// when there is none.
	UserResponse(ctx context.Context, surveyID, userID uint) (*models.SurveyResponse, error)
	Responses(ctx context.Context, surveyID uint) ([]ResponseRecord, error)
	// Answers returns every answer row belonging to the survey's responses.
	Answers(ctx context.Context, surveyID uint) ([]models.QuestionResponse, error)
	// InTx runs fn in a transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of Store, bound to one transaction.
type Tx interface {
	UserResponse(surveyID, userID uint) (*models.SurveyResponse, error)
	// CreateResponse returns ErrDuplicateResponse when an authenticated
	// response for the same (survey, user) already exists.
	CreateResponse(r *models.SurveyResponse) error
	UpdateResponse(r *models.SurveyResponse) error
	// DeleteAnswers removes the response's answers for questionIDs, or all
	// of them when questionIDs is nil.
	DeleteAnswers(responseID uint, questionIDs []uint) error
	InsertAnswers(rows []models.QuestionResponse) error
}
