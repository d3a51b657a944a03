package db

import (
	"context"
	"fmt"
	"time"

	"github.com/nikhilsahni7/TourDesk/config"
	"github.com/nikhilsahni7/TourDesk/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and applies the pool settings from cfg.
func Open(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return conn, nil
}

// constraints are the pieces of the schema AutoMigrate cannot express.
var constraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS survey_responses_survey_user_key
		ON survey_responses (survey_id, user_id) WHERE user_id IS NOT NULL`,
	`DO $$ BEGIN
		ALTER TABLE survey_responses ADD CONSTRAINT survey_responses_responder_check
			CHECK ((user_id IS NOT NULL AND is_anonymous = false)
				OR (user_id IS NULL AND is_anonymous = true AND respondent_email IS NOT NULL));
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		ALTER TABLE surveys ADD CONSTRAINT surveys_link_check
			CHECK (tour_id IS NULL OR activity_id IS NULL);
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		ALTER TABLE question_responses ADD CONSTRAINT question_responses_rating_check
			CHECK (rating_response IS NULL OR rating_response BETWEEN 1 AND 5);
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
}

// Migrate creates or updates the schema.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Tour{},
		&models.Activity{},
		&models.Note{},
		&models.Discussion{},
		&models.DiscussionMessage{},
		&models.MessageReaction{},
		&models.DiscussionTeam{},
		&models.DiscussionTeamNote{},
		&models.ActivityQuestion{},
		&models.DiscussionQuestion{},
		&models.Survey{},
		&models.SurveyQuestion{},
		&models.QuestionOption{},
		&models.SurveyResponse{},
		&models.QuestionResponse{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range constraints {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}

func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
