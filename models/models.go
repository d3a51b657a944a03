package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleGuide Role = "Guide"
	RoleUser  Role = "User"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `gorm:"not null;default:User" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TourStatus string

const (
	TourDraft     TourStatus = "Draft"
	TourPending   TourStatus = "Pending"
	TourCompleted TourStatus = "Completed"
)

// Next returns the only status a tour may move to from s.
func (s TourStatus) Next() (TourStatus, bool) {
	switch s {
	case TourDraft:
		return TourPending, true
	case TourPending:
		return TourCompleted, true
	}
	return "", false
}

type Tour struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Name               string     `gorm:"not null" json:"name"`
	StartDate          time.Time  `gorm:"not null" json:"start_date"`
	EndDate            time.Time  `gorm:"not null" json:"end_date"`
	Status             TourStatus `gorm:"not null;default:Draft" json:"status"`
	PostTourAccessDays int        `gorm:"not null;default:30" json:"post_tour_access_days"`
	Activities         []Activity `json:"activities,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type Activity struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TourID           uint      `gorm:"not null;index" json:"tour_id"`
	Title            string    `gorm:"not null" json:"title"`
	Kind             string    `json:"kind"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	LinkedActivityID *uint     `json:"linked_activity_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Note struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	Content    string    `gorm:"not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Discussion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TourID    uint      `gorm:"not null;index" json:"tour_id"`
	CreatorID uint      `gorm:"not null" json:"creator_id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DiscussionMessage struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	DiscussionID uint              `gorm:"not null;index" json:"discussion_id"`
	AuthorID     uint              `gorm:"not null" json:"author_id"`
	Body         string            `gorm:"not null" json:"body"`
	Reactions    []MessageReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"reactions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;uniqueIndex:idx_reaction_once" json:"message_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_once" json:"user_id"`
	Emoji     string    `gorm:"not null;uniqueIndex:idx_reaction_once" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type DiscussionTeam struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	Name       string    `gorm:"not null" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DiscussionTeamNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"not null;index" json:"team_id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ActivityQuestion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	Question   string    `gorm:"not null" json:"question"`
	Answer     string    `json:"answer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DiscussionQuestion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	Prompt     string    `gorm:"not null" json:"prompt"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SurveyType string

const (
	SurveyTourApplication  SurveyType = "TOUR_APPLICATION"
	SurveyActivityFeedback SurveyType = "ACTIVITY_FEEDBACK"
	SurveyTourCompletion   SurveyType = "TOUR_COMPLETION"
	SurveyCustom           SurveyType = "CUSTOM"
)

type SurveyStatus string

const (
	SurveyDraft    SurveyStatus = "DRAFT"
	SurveyActive   SurveyStatus = "ACTIVE"
	SurveyArchived SurveyStatus = "ARCHIVED"
)

func (s SurveyStatus) rank() int {
	switch s {
	case SurveyDraft:
		return 0
	case SurveyActive:
		return 1
	case SurveyArchived:
		return 2
	}
	return -1
}

// CanMoveTo reports whether a survey may go from s to next. Status only
// moves forward.
func (s SurveyStatus) CanMoveTo(next SurveyStatus) bool {
	return next.rank() >= 0 && s.rank() >= 0 && next.rank() > s.rank()
}

type Survey struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Title             string           `gorm:"not null" json:"title"`
	Description       string           `json:"description"`
	Type              SurveyType       `gorm:"not null;default:CUSTOM" json:"type"`
	Status            SurveyStatus     `gorm:"not null;default:DRAFT" json:"status"`
	TourID            *uint            `gorm:"index" json:"tour_id,omitempty"`
	ActivityID        *uint            `gorm:"index" json:"activity_id,omitempty"`
	AllowPublicAccess bool             `gorm:"not null;default:false" json:"allow_public_access"`
	PublicToken       *uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"public_token,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty"`
	Questions         []SurveyQuestion `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Responses         []SurveyResponse `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// AcceptsPublicAt reports whether the public token may be used at now.
func (s *Survey) AcceptsPublicAt(now time.Time) bool {
	if !s.AllowPublicAccess || s.Status != SurveyActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionTextarea       QuestionType = "TEXTAREA"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionCheckbox       QuestionType = "CHECKBOX"
	QuestionRating         QuestionType = "RATING"
	QuestionDate           QuestionType = "DATE"
	QuestionNumber         QuestionType = "NUMBER"
	QuestionYesNo          QuestionType = "YES_NO"
)

type SurveyQuestion struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	SurveyID        uint             `gorm:"not null;uniqueIndex:idx_question_order" json:"survey_id"`
	Text            string           `gorm:"not null" json:"text"`
	Type            QuestionType     `gorm:"not null" json:"type"`
	OrderIndex      int              `gorm:"not null;uniqueIndex:idx_question_order" json:"order_index"`
	IsRequired      bool             `json:"is_required"`
	ValidationRules datatypes.JSON   `gorm:"type:jsonb" json:"validation_rules,omitempty"`
	Options         []QuestionOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type QuestionOption struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"not null" json:"text"`
	OrderIndex int    `json:"order_index"`
}

// SurveyResponse is one responder's submission. Authenticated responses
// carry UserID; anonymous ones carry RespondentEmail instead.
type SurveyResponse struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	SurveyID        uint               `gorm:"not null;index" json:"survey_id"`
	UserID          *uint              `json:"user_id,omitempty"`
	IsAnonymous     bool               `gorm:"not null;default:false" json:"is_anonymous"`
	RespondentEmail *string            `json:"respondent_email,omitempty"`
	RespondentName  *string            `json:"respondent_name,omitempty"`
	IsComplete      bool               `gorm:"not null;default:false" json:"is_complete"`
	StartedAt       time.Time          `gorm:"not null" json:"started_at"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	Metadata        datatypes.JSON     `gorm:"type:jsonb" json:"metadata,omitempty"`
	Answers         []QuestionResponse `gorm:"foreignKey:ResponseID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// QuestionResponse holds one answer. Exactly one value column is set,
// chosen by the question's type.
type QuestionResponse struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	ResponseID        uint          `gorm:"not null;uniqueIndex:idx_answer_once" json:"response_id"`
	QuestionID        uint          `gorm:"not null;uniqueIndex:idx_answer_once" json:"question_id"`
	TextResponse      *string       `json:"text_response,omitempty"`
	NumberResponse    *float64      `json:"number_response,omitempty"`
	DateResponse      *time.Time    `gorm:"type:date" json:"date_response,omitempty"`
	RatingResponse    *int          `json:"rating_response,omitempty"`
	SelectedOptionIDs pq.Int64Array `gorm:"type:integer[]" json:"selected_option_ids,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}
