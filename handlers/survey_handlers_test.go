package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/nikhilsahni7/TourDesk/models"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"github.com/nikhilsahni7/TourDesk/surveys/surveystest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow     = time.Date(2024, 1, 11, 0, 0, 1, 0, time.UTC)
	publicToken = uuid.MustParse("3e0b7d3c-2c4e-4a5e-8f43-0d6a9b1f7c21")
)

type stubLookup map[gate.Kind]map[uint]time.Time

func (s stubLookup) TourEnd(_ context.Context, kind gate.Kind, id uint) (time.Time, error) {
	end, ok := s[kind][id]
	if !ok {
		return time.Time{}, gate.ErrNotFound
	}
	return end, nil
}

type testServer struct {
	router *mux.Router
	store  *surveystest.Store
	tokens *auth.Tokens
}

func setupTestServer(t *testing.T, lookup stubLookup, publicRate float64, publicBurst int) *testServer {
	t.Helper()
	store := surveystest.New()
	store.AddSurvey(models.Survey{
		ID:     1,
		Title:  "Tour feedback",
		Status: models.SurveyActive,
		Questions: []models.SurveyQuestion{
			{ID: 11, SurveyID: 1, Text: "Overall rating", Type: models.QuestionRating, OrderIndex: 1, IsRequired: true},
			{ID: 12, SurveyID: 1, Text: "Comments", Type: models.QuestionText, OrderIndex: 2},
		},
	})
	store.AddSurvey(models.Survey{
		ID:                2,
		Title:             "Open feedback",
		Status:            models.SurveyActive,
		AllowPublicAccess: true,
		PublicToken:       &publicToken,
		Questions: []models.SurveyQuestion{
			{ID: 21, SurveyID: 2, Text: "Anything to add?", Type: models.QuestionText, OrderIndex: 1},
		},
	})
	store.AddSurvey(models.Survey{ID: 3, Title: "Not yet", Status: models.SurveyDraft})

	tokens := auth.NewTokens("test-secret", time.Hour)
	h := New(Deps{
		Gate:        gate.New(lookup).WithClock(func() time.Time { return testNow }),
		Surveys:     surveys.NewEngine(store).WithClock(func() time.Time { return testNow }),
		Auth:        auth.NewAuthenticator(tokens, nil),
		Tokens:      tokens,
		PublicRate:  publicRate,
		PublicBurst: publicBurst,
	})
	return &testServer{router: h.Router(), store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := s.tokens.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

var (
	traveler = &models.User{ID: 100, Email: "traveler@example.com", Role: models.RoleUser}
	guide    = &models.User{ID: 7, Email: "guide@example.com", Role: models.RoleGuide}
)

func TestSurveyHandlers(t *testing.T) {
	srv := setupTestServer(t, stubLookup{}, 0, 0)

	t.Run("SubmitRequiresAuthentication", func(t *testing.T) {
		rr := srv.do(t, "POST", "/surveys/1/submit", map[string]interface{}{"responses": []interface{}{}}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"Authentication required"}`, rr.Body.String())
	})

	t.Run("Submit", func(t *testing.T) {
		body := map[string]interface{}{
			"responses": []map[string]interface{}{
				{"question_id": 11, "rating_response": 4},
				{"question_id": 12, "text_response": "Lovely"},
			},
		}
		rr := srv.do(t, "POST", "/surveys/1/submit", body, traveler)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.NotZero(t, out["response_id"])

		rows := srv.store.ResponsesFor(1)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsComplete)
		assert.Len(t, rows[0].Answers, 2)
	})

	t.Run("SubmitRejectsWrongColumn", func(t *testing.T) {
		body := map[string]interface{}{
			"responses": []map[string]interface{}{{"question_id": 11, "text_response": "four"}},
		}
		rr := srv.do(t, "POST", "/surveys/1/submit", body, traveler)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("SubmitToDraftSurvey", func(t *testing.T) {
		rr := srv.do(t, "POST", "/surveys/3/submit", map[string]interface{}{"responses": []interface{}{}}, traveler)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.JSONEq(t, `{"error":"Survey is not accepting responses"}`, rr.Body.String())
	})

	t.Run("SubmitUnknownSurvey", func(t *testing.T) {
		rr := srv.do(t, "POST", "/surveys/99/submit", map[string]interface{}{"responses": []interface{}{}}, traveler)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"Survey not found"}`, rr.Body.String())
	})

	t.Run("InvalidSurveyID", func(t *testing.T) {
		rr := srv.do(t, "POST", "/surveys/abc/submit", map[string]interface{}{}, traveler)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid ID"}`, rr.Body.String())
	})

	t.Run("SaveProgressThenMyResponse", func(t *testing.T) {
		rr := srv.do(t, "POST", "/surveys/1/save-progress", map[string]interface{}{
			"responses": []map[string]interface{}{{"question_id": 12, "text_response": "Half way"}},
		}, guide)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = srv.do(t, "GET", "/surveys/1/my-response", nil, guide)
		require.Equal(t, http.StatusOK, rr.Code)
		var mine surveys.MyResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
		assert.False(t, mine.IsComplete)
		require.Len(t, mine.Responses, 1)
		assert.Equal(t, "Half way", *mine.Responses[0].TextResponse)
	})

	t.Run("StatsForbiddenForTravelers", func(t *testing.T) {
		rr := srv.do(t, "GET", "/surveys/1/stats", nil, traveler)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Stats", func(t *testing.T) {
		rr := srv.do(t, "GET", "/surveys/1/stats", nil, guide)
		require.Equal(t, http.StatusOK, rr.Code)

		var stats surveys.SurveyResponseStats
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.TotalResponses)
		assert.Equal(t, 1, stats.CompletedResponses)
		assert.Equal(t, 0.5, stats.CompletionRate)
		require.Len(t, stats.Questions, 2)
		assert.Equal(t, 4.0, *stats.Questions[0].AverageRating)
	})

	t.Run("AggregatedResponses", func(t *testing.T) {
		rr := srv.do(t, "GET", "/surveys/1/aggregated-responses", nil, guide)
		require.Equal(t, http.StatusOK, rr.Code)

		var agg map[string]surveys.AggregatedQuestion
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agg))
		require.Contains(t, agg, "12")
		require.Len(t, agg["12"].Responses, 1)
		assert.Equal(t, "Lovely", agg["12"].Responses[0].Answer)
	})

	t.Run("ExportResponses", func(t *testing.T) {
		rr := srv.do(t, "GET", "/surveys/1/export", nil, guide)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), "QuestionID,Question,Respondent,SubmittedAt,Answer")
		assert.Contains(t, rr.Body.String(), "Lovely")
	})
}

func TestPublicSurveyHandlers(t *testing.T) {
	srv := setupTestServer(t, stubLookup{}, 0, 0)
	path := fmt.Sprintf("/public/surveys/%s", publicToken)

	t.Run("GetSurvey", func(t *testing.T) {
		rr := srv.do(t, "GET", path, nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var survey models.Survey
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &survey))
		assert.Equal(t, "Open feedback", survey.Title)
		assert.Len(t, survey.Questions, 1)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		rr := srv.do(t, "GET", "/public/surveys/"+uuid.NewString(), nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid or expired survey link"}`, rr.Body.String())
	})

	t.Run("SubmitWithoutEmail", func(t *testing.T) {
		rr := srv.do(t, "POST", path+"/submit", map[string]interface{}{
			"responses": []map[string]interface{}{{"question_id": 21, "text_response": "Hi"}},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"Email is required for anonymous survey responses"}`, rr.Body.String())
		assert.Empty(t, srv.store.ResponsesFor(2))
	})

	t.Run("SubmitWithInvalidEmail", func(t *testing.T) {
		rr := srv.do(t, "POST", path+"/submit", map[string]interface{}{
			"respondent_email": "not-an-email",
			"responses":        []interface{}{},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid email address"}`, rr.Body.String())
		assert.Empty(t, srv.store.ResponsesFor(2))
	})

	t.Run("Submit", func(t *testing.T) {
		for _, email := range []string{"a@example.com", "b@example.com"} {
			rr := srv.do(t, "POST", path+"/submit", map[string]interface{}{
				"respondent_email": email,
				"responses":        []map[string]interface{}{{"question_id": 21, "text_response": "Hi"}},
			}, nil)
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		}
		assert.Len(t, srv.store.ResponsesFor(2), 2)
	})
}

func TestPublicSubmitRateLimit(t *testing.T) {
	srv := setupTestServer(t, stubLookup{}, 0.001, 1)
	path := fmt.Sprintf("/public/surveys/%s", publicToken)

	first := srv.do(t, "GET", path, nil, nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := srv.do(t, "GET", path, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
