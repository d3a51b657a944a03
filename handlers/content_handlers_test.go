package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/stretchr/testify/assert"
)

func endedTourLookup() stubLookup {
	ended := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return stubLookup{
		gate.KindActivity:           {5: ended},
		gate.KindTour:               {2: ended},
		gate.KindNote:               {40: ended},
		gate.KindDiscussion:         {8: ended},
		gate.KindDiscussionMessage:  {81: ended},
		gate.KindDiscussionTeam:     {9: ended},
		gate.KindDiscussionTeamNote: {91: ended},
		gate.KindActivityQuestion:   {50: ended},
		gate.KindDiscussionQuestion: {60: ended},
	}
}

func TestMutationsOnEndedTourAreRejected(t *testing.T) {
	srv := setupTestServer(t, endedTourLookup(), 0, 0)

	cases := []struct {
		name   string
		method string
		path   string
		body   map[string]interface{}
	}{
		{"CreateNote", "POST", "/activities/5/notes", map[string]interface{}{"content": "Bring water"}},
		{"UpdateNote", "PUT", "/notes/40", map[string]interface{}{"content": "Bring more water"}},
		{"DeleteNote", "DELETE", "/notes/40", nil},
		{"CreateDiscussion", "POST", "/tours/2/discussions", map[string]interface{}{"title": "Day 2"}},
		{"DeleteDiscussion", "DELETE", "/discussions/8", nil},
		{"CreateMessage", "POST", "/discussions/8/messages", map[string]interface{}{"body": "Hello"}},
		{"UpdateMessage", "PUT", "/messages/81", map[string]interface{}{"body": "Edited"}},
		{"AddReaction", "POST", "/messages/81/reactions", map[string]interface{}{"emoji": "👍"}},
		{"RemoveReaction", "DELETE", "/messages/81/reactions/x", nil},
		{"CreateTeam", "POST", "/activities/5/teams", map[string]interface{}{"name": "Blue"}},
		{"UpdateTeam", "PUT", "/teams/9", map[string]interface{}{"name": "Green"}},
		{"CreateTeamNote", "POST", "/teams/9/notes", map[string]interface{}{"content": "Plan"}},
		{"DeleteTeamNote", "DELETE", "/team-notes/91", nil},
		{"CreateActivityQuestion", "POST", "/activities/5/questions", map[string]interface{}{"question": "When?"}},
		{"UpdateActivityQuestion", "PUT", "/activity-questions/50", map[string]interface{}{"answer": "Noon"}},
		{"CreateDiscussionQuestion", "POST", "/activities/5/discussion-questions", map[string]interface{}{"prompt": "Why?"}},
		{"DeleteDiscussionQuestion", "DELETE", "/discussion-questions/60", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body interface{}
			if tc.body != nil {
				body = tc.body
			}
			rr := srv.do(t, tc.method, tc.path, body, guide)
			assert.Equal(t, http.StatusForbidden, rr.Code)
			assert.JSONEq(t, `{"error":"This tour has ended and is now read-only"}`, rr.Body.String())
		})
	}
}

func TestMutationOnMissingParent(t *testing.T) {
	srv := setupTestServer(t, endedTourLookup(), 0, 0)

	rr := srv.do(t, "POST", "/activities/404/notes", map[string]interface{}{"content": "Hi"}, traveler)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, "PUT", "/notes/404", map[string]interface{}{"content": "Hi"}, traveler)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMutationsRequireAuthentication(t *testing.T) {
	srv := setupTestServer(t, endedTourLookup(), 0, 0)

	rr := srv.do(t, "POST", "/activities/5/notes", map[string]interface{}{"content": "Hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStaffOnlyMutations(t *testing.T) {
	srv := setupTestServer(t, endedTourLookup(), 0, 0)

	rr := srv.do(t, "POST", "/activities/5/teams", map[string]interface{}{"name": "Blue"}, traveler)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"Insufficient permissions"}`, rr.Body.String())
}

func TestInvalidEntityID(t *testing.T) {
	srv := setupTestServer(t, endedTourLookup(), 0, 0)

	rr := srv.do(t, "PUT", "/notes/zero", map[string]interface{}{"content": "Hi"}, traveler)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
