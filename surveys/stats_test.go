package surveys_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/nikhilsahni7/TourDesk/models"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"github.com/nikhilsahni7/TourDesk/surveys/surveystest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uid(id uint) *uint { return &id }

func ts(minutes int) *time.Time {
	t := clock.Add(time.Duration(minutes) * time.Minute)
	return &t
}

func completed(userID uint, submittedMin int, answers ...models.QuestionResponse) models.SurveyResponse {
	return models.SurveyResponse{
		SurveyID:    1,
		UserID:      uid(userID),
		IsComplete:  true,
		StartedAt:   clock,
		SubmittedAt: ts(submittedMin),
		Answers:     answers,
	}
}

func statsFor(t *testing.T, store *surveystest.Store) *surveys.SurveyResponseStats {
	t.Helper()
	stats, err := surveys.NewEngine(store).Stats(context.Background(), 1, guide)
	require.NoError(t, err)
	return stats
}

func questionStats(t *testing.T, stats *surveys.SurveyResponseStats, id uint) surveys.QuestionStats {
	t.Helper()
	for _, q := range stats.Questions {
		if q.QuestionID == id {
			return q
		}
	}
	t.Fatalf("question %d missing from stats", id)
	return surveys.QuestionStats{}
}

func TestStatsRating(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	for i, r := range []int{3, 3, 4, 5} {
		store.SeedResponse(completed(uint(i+1), 10, models.QuestionResponse{QuestionID: qRating, RatingResponse: rating(r)}))
	}
	// partial responses do not count toward question statistics
	store.SeedResponse(models.SurveyResponse{SurveyID: 1, UserID: uid(50), StartedAt: clock,
		Answers: []models.QuestionResponse{{QuestionID: qRating, RatingResponse: rating(1)}}})

	q := questionStats(t, statsFor(t, store), qRating)
	require.NotNil(t, q.AverageRating)
	assert.Equal(t, 3.75, *q.AverageRating)
	assert.Equal(t, map[int]int{3: 2, 4: 1, 5: 1}, q.RatingDistribution)
	assert.Equal(t, 4, q.TotalAnswers)
}

func TestStatsMultipleChoicePercentageUsesRespondentsWithSelection(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	for i := 0; i < 10; i++ {
		option := int64(132)
		if i < 4 {
			option = 131
		}
		store.SeedResponse(completed(uint(i+1), 5,
			models.QuestionResponse{QuestionID: qChoice, SelectedOptionIDs: pq.Int64Array{option}}))
	}
	// responses that skipped the question do not dilute the percentage
	for i := 0; i < 5; i++ {
		store.SeedResponse(completed(uint(i+20), 5, models.QuestionResponse{QuestionID: qText, TextResponse: str("no pick")}))
	}

	stats := statsFor(t, store)
	assert.Equal(t, 15, stats.TotalResponses)

	q := questionStats(t, stats, qChoice)
	require.Len(t, q.Options, 3)
	assert.Equal(t, surveys.OptionCount{OptionID: 131, Text: "Lake", Count: 4, Percentage: 40}, q.Options[0])
	assert.Equal(t, surveys.OptionCount{OptionID: 132, Text: "Ridge", Count: 6, Percentage: 60}, q.Options[1])
	assert.Equal(t, surveys.OptionCount{OptionID: 133, Text: "Hut", Count: 0, Percentage: 0}, q.Options[2])
}

func TestStatsCheckboxCountsEveryContainingResponse(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	store.SeedResponse(completed(1, 5, models.QuestionResponse{QuestionID: qCheckbox, SelectedOptionIDs: pq.Int64Array{141, 142}}))
	store.SeedResponse(completed(2, 5, models.QuestionResponse{QuestionID: qCheckbox, SelectedOptionIDs: pq.Int64Array{142}}))

	q := questionStats(t, statsFor(t, store), qCheckbox)
	assert.Equal(t, 1, q.Options[0].Count)
	assert.Equal(t, float64(50), q.Options[0].Percentage)
	assert.Equal(t, 2, q.Options[1].Count)
	assert.Equal(t, float64(100), q.Options[1].Percentage)
}

func TestStatsYesNoMatchesExactStrings(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	for i, answer := range []string{"Yes", "Yes", "No", "yes", "true"} {
		store.SeedResponse(completed(uint(i+1), 5, models.QuestionResponse{QuestionID: qYesNo, TextResponse: str(answer)}))
	}

	q := questionStats(t, statsFor(t, store), qYesNo)
	require.NotNil(t, q.YesCount)
	require.NotNil(t, q.NoCount)
	assert.Equal(t, 2, *q.YesCount)
	assert.Equal(t, 1, *q.NoCount)
	assert.Equal(t, 5, q.TotalAnswers)
}

func TestStatsTextSamplesMostRecentFive(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	for i := 0; i < 7; i++ {
		store.SeedResponse(completed(uint(i+1), i, models.QuestionResponse{QuestionID: qText, TextResponse: str(fmt.Sprintf("comment %d", i))}))
	}

	q := questionStats(t, statsFor(t, store), qText)
	assert.Equal(t, []string{"comment 6", "comment 5", "comment 4", "comment 3", "comment 2"}, q.SampleResponses)
	assert.Equal(t, 7, q.TotalAnswers)
}

func TestStatsNumberSummary(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	for i, km := range []float64{4, 10, 7} {
		store.SeedResponse(completed(uint(i+1), 5, models.QuestionResponse{QuestionID: qNumber, NumberResponse: num(km)}))
	}

	q := questionStats(t, statsFor(t, store), qNumber)
	require.NotNil(t, q.Number)
	assert.Equal(t, surveys.NumberSummary{Average: 7, Min: 4, Max: 10}, *q.Number)
}

func TestStatsTotalsAndCompletionTime(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	store.SeedResponse(completed(1, 10))
	store.SeedResponse(completed(2, 20))
	store.SeedResponse(completed(3, 30))
	store.SeedResponse(models.SurveyResponse{SurveyID: 1, UserID: uid(4), StartedAt: clock})

	stats := statsFor(t, store)
	assert.Equal(t, 4, stats.TotalResponses)
	assert.Equal(t, 3, stats.CompletedResponses)
	assert.Equal(t, 1, stats.PartialResponses)
	assert.Equal(t, 0.75, stats.CompletionRate)
	assert.Equal(t, float64(20), stats.AverageCompletionMinutes)
	assert.Len(t, stats.Questions, 7)
}

func TestStatsWithNoResponses(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))

	stats := statsFor(t, store)
	assert.Equal(t, 0, stats.TotalResponses)
	assert.Equal(t, float64(0), stats.CompletionRate)
	assert.Equal(t, float64(0), stats.AverageCompletionMinutes)

	q := questionStats(t, stats, qRating)
	require.NotNil(t, q.AverageRating)
	assert.Equal(t, float64(0), *q.AverageRating)
	assert.Empty(t, q.RatingDistribution)

	mc := questionStats(t, stats, qChoice)
	for _, o := range mc.Options {
		assert.Equal(t, float64(0), o.Percentage)
	}
}

func TestStatsWithNoQuestions(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(models.Survey{ID: 1, Status: models.SurveyActive})

	stats := statsFor(t, store)
	assert.Empty(t, stats.Questions)

	agg, err := surveys.NewEngine(store).AggregatedResponses(context.Background(), 1, guide)
	require.NoError(t, err)
	assert.Empty(t, agg)
}

func TestStatsErrors(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	engine := surveys.NewEngine(store)

	_, err := engine.Stats(context.Background(), 99, guide)
	assert.ErrorIs(t, err, surveys.ErrSurveyNotFound)

	_, err = engine.AggregatedResponses(context.Background(), 99, guide)
	assert.ErrorIs(t, err, surveys.ErrSurveyNotFound)

	_, err = engine.Stats(context.Background(), 1, traveler)
	assert.ErrorIs(t, err, surveys.ErrForbidden)
}

func TestAggregatedResponses(t *testing.T) {
	store := surveystest.New()
	store.AddSurvey(feedbackSurvey(1))
	store.AddUser(1, "Ada Lovelace")

	store.SeedResponse(completed(1, 30,
		models.QuestionResponse{QuestionID: qCheckbox, SelectedOptionIDs: pq.Int64Array{142, 141}},
		models.QuestionResponse{QuestionID: qRating, RatingResponse: rating(5)},
	))
	store.SeedResponse(models.SurveyResponse{
		SurveyID:        1,
		IsAnonymous:     true,
		RespondentEmail: str("walker@example.com"),
		RespondentName:  str("Walker"),
		IsComplete:      true,
		StartedAt:       clock,
		SubmittedAt:     ts(10),
		Answers: []models.QuestionResponse{
			{QuestionID: qRating, RatingResponse: rating(3)},
			{QuestionID: qDate, DateResponse: ts(0)},
		},
	})

	agg, err := surveys.NewEngine(store).AggregatedResponses(context.Background(), 1, guide)
	require.NoError(t, err)
	require.Len(t, agg, 7)

	r := agg[qRating]
	assert.Equal(t, 2, r.TotalResponses)
	require.Len(t, r.Responses, 2)
	assert.Equal(t, "Walker", r.Responses[0].RespondentName)
	assert.Equal(t, 3, r.Responses[0].Answer)
	assert.Equal(t, "Ada Lovelace", r.Responses[1].RespondentName)
	assert.Equal(t, 5, r.Responses[1].Answer)
	assert.Equal(t, 4.0, *r.AverageRating)

	c := agg[qCheckbox]
	require.Len(t, c.Responses, 1)
	assert.Equal(t, []string{"Lunch", "Breakfast"}, c.Responses[0].Answer)

	d := agg[qDate]
	require.Len(t, d.Responses, 1)
	assert.Equal(t, "2024-03-01", d.Responses[0].Answer)

	assert.Empty(t, agg[qText].Responses)
}
