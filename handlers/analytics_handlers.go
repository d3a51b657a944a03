package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

func (h *Handler) SurveyStats(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.surveys.Stats(r.Context(), surveyID, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) AggregatedResponses(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := h.surveys.AggregatedResponses(r.Context(), surveyID, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ExportResponses writes every completed answer as one CSV row, grouped by
// question in survey order.
func (h *Handler) ExportResponses(w http.ResponseWriter, r *http.Request) {
	surveyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := h.surveys.AggregatedResponses(r.Context(), surveyID, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := make([]uint, 0, len(agg))
	for id := range agg {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return agg[ids[i]].OrderIndex < agg[ids[j]].OrderIndex })

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=survey_%d_responses.csv", surveyID))

	csvWriter := csv.NewWriter(w)
	csvWriter.Write([]string{"QuestionID", "Question", "Respondent", "SubmittedAt", "Answer"})
	for _, id := range ids {
		q := agg[id]
		for _, a := range q.Responses {
			csvWriter.Write([]string{
				strconv.FormatUint(uint64(q.QuestionID), 10),
				q.QuestionText,
				a.RespondentName,
				a.SubmittedAt.UTC().Format(time.RFC3339),
				formatAnswer(a.Answer),
			})
		}
	}
	csvWriter.Flush()
}

func formatAnswer(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, "; ")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
