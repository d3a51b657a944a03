package surveys_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/config"
	"github.com/nikhilsahni7/TourDesk/db"
	"github.com/nikhilsahni7/TourDesk/models"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := db.Open(config.DBConfig{URL: dsn, MaxIdleConns: 2, MaxOpenConns: 10, ConnMaxLifetime: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		sqlDB.Close()
	})
	return conn
}

func seedSurvey(t *testing.T, conn *gorm.DB) (models.Survey, models.User) {
	t.Helper()
	user := models.User{Email: "store-test-" + time.Now().Format("150405.000000") + "@example.com", Name: "Store Test", Role: models.RoleUser}
	require.NoError(t, conn.Create(&user).Error)

	tour := models.Tour{Name: "Coast walk", StartDate: time.Now().Add(-48 * time.Hour), EndDate: time.Now().Add(48 * time.Hour)}
	require.NoError(t, conn.Create(&tour).Error)

	survey := models.Survey{
		Title:  "Coast walk feedback",
		Type:   models.SurveyTourCompletion,
		Status: models.SurveyActive,
		TourID: &tour.ID,
		Questions: []models.SurveyQuestion{
			{Text: "Rating", Type: models.QuestionRating, OrderIndex: 1},
			{Text: "Stops", Type: models.QuestionCheckbox, OrderIndex: 2, Options: []models.QuestionOption{
				{Text: "Cliffs", OrderIndex: 1}, {Text: "Harbour", OrderIndex: 2},
			}},
		},
	}
	require.NoError(t, conn.Create(&survey).Error)
	t.Cleanup(func() {
		conn.Delete(&models.Survey{}, survey.ID)
		conn.Delete(&models.Tour{}, tour.ID)
		conn.Delete(&models.User{}, user.ID)
	})
	return survey, user
}

func TestGormStoreConcurrentSubmits(t *testing.T) {
	conn := setupTestDB(t)
	survey, user := seedSurvey(t, conn)
	engine := surveys.NewEngine(surveys.NewGormStore(conn))
	caller := auth.Identity{UserID: user.ID, Role: models.RoleUser}

	ratingQ := survey.Questions[0].ID
	stopsQ := survey.Questions[1].ID
	options := []int64{int64(survey.Questions[1].Options[0].ID), int64(survey.Questions[1].Options[1].ID)}

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := 1 + i%5
			_, errs[i] = engine.Submit(context.Background(), survey.ID, caller, surveys.Submission{
				Responses: []surveys.AnswerInput{
					{QuestionID: ratingQ, RatingResponse: &r},
					{QuestionID: stopsQ, SelectedOptionIDs: options},
				},
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, conn.Model(&models.SurveyResponse{}).Where("survey_id = ?", survey.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stats, err := engine.Stats(context.Background(), survey.ID, auth.Identity{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalResponses)
	assert.Equal(t, 1, stats.CompletedResponses)
	require.Len(t, stats.Questions, 2)
	assert.Equal(t, 1, stats.Questions[1].Options[0].Count)

	agg, err := engine.AggregatedResponses(context.Background(), survey.ID, auth.Identity{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, agg[stopsQ].Responses, 1)
	assert.Equal(t, "Store Test", agg[stopsQ].Responses[0].RespondentName)
	assert.Equal(t, []string{"Cliffs", "Harbour"}, agg[stopsQ].Responses[0].Answer)
}
