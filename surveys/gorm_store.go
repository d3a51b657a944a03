package surveys

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nikhilsahni7/TourDesk/models"
	"gorm.io/gorm"
)

// uniqueResponseIndex is the partial unique index on
// (survey_id, user_id) WHERE user_id IS NOT NULL.
const uniqueResponseIndex = "survey_responses_survey_user_key"

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == uniqueResponseIndex
}

func (s *GormStore) Survey(ctx context.Context, id uint) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.WithContext(ctx).First(&survey, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load survey %d: %w", id, err)
	}
	return &survey, nil
}

func (s *GormStore) SurveyByToken(ctx context.Context, token uuid.UUID) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.WithContext(ctx).Where("public_token = ?", token).First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load survey by token: %w", err)
	}
	return &survey, nil
}

func (s *GormStore) Questions(ctx context.Context, surveyID uint) ([]models.SurveyQuestion, error) {
	var questions []models.SurveyQuestion
	err := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index, id")
		}).
		Where("survey_id = ?", surveyID).
		Order("order_index").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("load questions for survey %d: %w", surveyID, err)
	}
	return questions, nil
}

func (s *GormStore) UserResponse(ctx context.Context, surveyID, userID uint) (*models.SurveyResponse, error) {
	var responses []models.SurveyResponse
	err := s.db.WithContext(ctx).
		Preload("Answers").
		Where("survey_id = ? AND user_id = ?", surveyID, userID).
		Limit(1).
		Find(&responses).Error
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return &responses[0], nil
}

const responsesQuery = `
SELECT r.id, r.user_id, r.is_complete, r.started_at, r.submitted_at,
       COALESCE(NULLIF(u.name, ''), r.respondent_name, 'Anonymous') AS respondent_name
FROM survey_responses r
LEFT JOIN users u ON u.id = r.user_id
WHERE r.survey_id = ?
ORDER BY r.id`

func (s *GormStore) Responses(ctx context.Context, surveyID uint) ([]ResponseRecord, error) {
	var records []ResponseRecord
	if err := s.db.WithContext(ctx).Raw(responsesQuery, surveyID).Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("load responses for survey %d: %w", surveyID, err)
	}
	return records, nil
}

const answersQuery = `
SELECT qr.id, qr.response_id, qr.question_id, qr.text_response, qr.number_response,
       qr.date_response, qr.rating_response, qr.selected_option_ids, qr.created_at
FROM question_responses qr
JOIN survey_responses r ON r.id = qr.response_id
WHERE r.survey_id = ?
ORDER BY qr.id`

func (s *GormStore) Answers(ctx context.Context, surveyID uint) ([]models.QuestionResponse, error) {
	var rows []models.QuestionResponse
	if err := s.db.WithContext(ctx).Raw(answersQuery, surveyID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load answers for survey %d: %w", surveyID, err)
	}
	return rows, nil
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) UserResponse(surveyID, userID uint) (*models.SurveyResponse, error) {
	var responses []models.SurveyResponse
	err := t.db.Where("survey_id = ? AND user_id = ?", surveyID, userID).Limit(1).Find(&responses).Error
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return &responses[0], nil
}

func (t *gormTx) CreateResponse(r *models.SurveyResponse) error {
	err := t.db.Omit("Answers").Create(r).Error
	if isUniqueViolation(err) {
		return ErrDuplicateResponse
	}
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (t *gormTx) UpdateResponse(r *models.SurveyResponse) error {
	err := t.db.Exec(
		`UPDATE survey_responses
		 SET is_complete = ?, submitted_at = ?, metadata = ?, updated_at = now()
		 WHERE id = ?`,
		r.IsComplete, r.SubmittedAt, r.Metadata, r.ID,
	).Error
	if err != nil {
		return fmt.Errorf("update response %d: %w", r.ID, err)
	}
	return nil
}

func (t *gormTx) DeleteAnswers(responseID uint, questionIDs []uint) error {
	var err error
	if questionIDs == nil {
		err = t.db.Exec(`DELETE FROM question_responses WHERE response_id = ?`, responseID).Error
	} else {
		err = t.db.Exec(`DELETE FROM question_responses WHERE response_id = ? AND question_id IN ?`,
			responseID, questionIDs).Error
	}
	if err != nil {
		return fmt.Errorf("delete answers for response %d: %w", responseID, err)
	}
	return nil
}

func (t *gormTx) InsertAnswers(rows []models.QuestionResponse) error {
	if len(rows) == 0 {
		return nil
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	return nil
}
