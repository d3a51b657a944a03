package surveys

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/models"
)

const sampleSize = 5

type OptionCount struct {
	OptionID   uint    `json:"option_id"`
	Text       string  `json:"text"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type NumberSummary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summary is the type-specific part of a question's statistics. Only the
// fields for the question's type are set.
type Summary struct {
	AverageRating      *float64       `json:"average_rating,omitempty"`
	RatingDistribution map[int]int    `json:"rating_distribution,omitempty"`
	YesCount           *int           `json:"yes_count,omitempty"`
	NoCount            *int           `json:"no_count,omitempty"`
	Options            []OptionCount  `json:"options,omitempty"`
	SampleResponses    []string       `json:"sample_responses,omitempty"`
	Number             *NumberSummary `json:"number,omitempty"`
}

type QuestionStats struct {
	QuestionID   uint                `json:"question_id"`
	QuestionText string              `json:"question_text"`
	QuestionType models.QuestionType `json:"question_type"`
	TotalAnswers int                 `json:"total_answers"`
	Summary
}

type SurveyResponseStats struct {
	SurveyID                 uint            `json:"survey_id"`
	TotalResponses           int             `json:"total_responses"`
	CompletedResponses       int             `json:"completed_responses"`
	PartialResponses         int             `json:"partial_responses"`
	CompletionRate           float64         `json:"completion_rate"`
	AverageCompletionMinutes float64         `json:"average_completion_minutes"`
	Questions                []QuestionStats `json:"questions"`
}

type AggregatedAnswer struct {
	RespondentName string      `json:"respondent_name"`
	Answer         interface{} `json:"answer"`
	SubmittedAt    time.Time   `json:"submitted_at"`
}

type AggregatedQuestion struct {
	QuestionID     uint                `json:"question_id"`
	QuestionText   string              `json:"question_text"`
	QuestionType   models.QuestionType `json:"question_type"`
	OrderIndex     int                 `json:"order_index"`
	TotalResponses int                 `json:"total_responses"`
	Summary
	Responses []AggregatedAnswer `json:"responses"`
}

// completedAnswer is an answer from a completed response, decoded.
type completedAnswer struct {
	value       Value
	respondent  string
	submittedAt time.Time
	rowID       uint
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func canReport(caller auth.Identity) bool {
	return caller.HasRole(models.RoleAdmin, models.RoleGuide)
}

// loadCompleted gathers the survey's questions, responses, and the decoded
// answers of completed responses grouped by question, oldest first.
func (e *Engine) loadCompleted(ctx context.Context, surveyID uint) ([]models.SurveyQuestion, []ResponseRecord, map[uint][]completedAnswer, error) {
	if _, err := e.store.Survey(ctx, surveyID); err != nil {
		return nil, nil, nil, err
	}
	questions, err := e.store.Questions(ctx, surveyID)
	if err != nil {
		return nil, nil, nil, err
	}
	responses, err := e.store.Responses(ctx, surveyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(questions) == 0 {
		return questions, responses, map[uint][]completedAnswer{}, nil
	}
	rows, err := e.store.Answers(ctx, surveyID)
	if err != nil {
		return nil, nil, nil, err
	}
	return questions, responses, groupCompleted(questions, responses, rows), nil
}

func groupCompleted(questions []models.SurveyQuestion, responses []ResponseRecord, rows []models.QuestionResponse) map[uint][]completedAnswer {
	completed := make(map[uint]*ResponseRecord, len(responses))
	for i := range responses {
		if responses[i].IsComplete {
			completed[responses[i].ID] = &responses[i]
		}
	}
	byID := make(map[uint]*models.SurveyQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	grouped := make(map[uint][]completedAnswer, len(questions))
	for i := range rows {
		resp, ok := completed[rows[i].ResponseID]
		if !ok {
			continue
		}
		q, ok := byID[rows[i].QuestionID]
		if !ok {
			continue
		}
		v := valueOf(q, &rows[i])
		if v == nil {
			continue
		}
		at := resp.StartedAt
		if resp.SubmittedAt != nil {
			at = *resp.SubmittedAt
		}
		grouped[q.ID] = append(grouped[q.ID], completedAnswer{
			value:       v,
			respondent:  resp.RespondentName,
			submittedAt: at,
			rowID:       rows[i].ID,
		})
	}
	for id := range grouped {
		answers := grouped[id]
		sort.SliceStable(answers, func(a, b int) bool {
			if !answers[a].submittedAt.Equal(answers[b].submittedAt) {
				return answers[a].submittedAt.Before(answers[b].submittedAt)
			}
			return answers[a].rowID < answers[b].rowID
		})
	}
	return grouped
}

// summarize computes the statistic for q's type over answers, which are
// sorted oldest first.
func summarize(q *models.SurveyQuestion, answers []completedAnswer) Summary {
	var s Summary
	switch q.Type {
	case models.QuestionRating:
		dist := make(map[int]int)
		sum, n := 0, 0
		for _, a := range answers {
			r := int(a.value.(Rating))
			dist[r]++
			sum += r
			n++
		}
		avg := 0.0
		if n > 0 {
			avg = round2(float64(sum) / float64(n))
		}
		s.AverageRating = &avg
		s.RatingDistribution = dist

	case models.QuestionYesNo:
		yes, no := 0, 0
		for _, a := range answers {
			switch string(a.value.(YesNo)) {
			case "Yes":
				yes++
			case "No":
				no++
			}
		}
		s.YesCount = &yes
		s.NoCount = &no

	case models.QuestionMultipleChoice, models.QuestionCheckbox:
		counts := make(map[int64]int)
		withSelection := 0
		for _, a := range answers {
			choice := a.value.(Choice)
			if len(choice) == 0 {
				continue
			}
			withSelection++
			for _, id := range choice {
				counts[id]++
			}
		}
		s.Options = make([]OptionCount, 0, len(q.Options))
		for _, o := range q.Options {
			c := counts[int64(o.ID)]
			pct := 0.0
			if withSelection > 0 {
				pct = round2(float64(c) * 100 / float64(withSelection))
			}
			s.Options = append(s.Options, OptionCount{OptionID: o.ID, Text: o.Text, Count: c, Percentage: pct})
		}

	case models.QuestionText, models.QuestionTextarea:
		s.SampleResponses = []string{}
		for i := len(answers) - 1; i >= 0 && len(s.SampleResponses) < sampleSize; i-- {
			s.SampleResponses = append(s.SampleResponses, string(answers[i].value.(Text)))
		}

	case models.QuestionNumber:
		if len(answers) == 0 {
			break
		}
		ns := &NumberSummary{Min: math.Inf(1), Max: math.Inf(-1)}
		sum := 0.0
		for _, a := range answers {
			f := float64(a.value.(Number))
			sum += f
			ns.Min = math.Min(ns.Min, f)
			ns.Max = math.Max(ns.Max, f)
		}
		ns.Average = round2(sum / float64(len(answers)))
		s.Number = ns
	}
	return s
}

// Stats computes per-question statistics over completed responses plus
// response counts for the whole survey.
func (e *Engine) Stats(ctx context.Context, surveyID uint, caller auth.Identity) (*SurveyResponseStats, error) {
	if !canReport(caller) {
		return nil, ErrForbidden
	}
	questions, responses, grouped, err := e.loadCompleted(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	stats := &SurveyResponseStats{
		SurveyID:       surveyID,
		TotalResponses: len(responses),
		Questions:      make([]QuestionStats, 0, len(questions)),
	}

	var minutes float64
	timed := 0
	for _, r := range responses {
		if !r.IsComplete {
			continue
		}
		stats.CompletedResponses++
		if r.SubmittedAt != nil {
			minutes += r.SubmittedAt.Sub(r.StartedAt).Minutes()
			timed++
		}
	}
	stats.PartialResponses = stats.TotalResponses - stats.CompletedResponses
	if stats.TotalResponses > 0 {
		stats.CompletionRate = round2(float64(stats.CompletedResponses) / float64(stats.TotalResponses))
	}
	if timed > 0 {
		stats.AverageCompletionMinutes = round2(minutes / float64(timed))
	}

	for i := range questions {
		q := &questions[i]
		answers := grouped[q.ID]
		stats.Questions = append(stats.Questions, QuestionStats{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			TotalAnswers: len(answers),
			Summary:      summarize(q, answers),
		})
	}
	return stats, nil
}

// AggregatedResponses lists every completed answer per question with the
// respondent's name, oldest first, alongside the question's summary.
func (e *Engine) AggregatedResponses(ctx context.Context, surveyID uint, caller auth.Identity) (map[uint]AggregatedQuestion, error) {
	if !canReport(caller) {
		return nil, ErrForbidden
	}
	questions, _, grouped, err := e.loadCompleted(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	out := make(map[uint]AggregatedQuestion, len(questions))
	for i := range questions {
		q := &questions[i]
		answers := grouped[q.ID]
		agg := AggregatedQuestion{
			QuestionID:     q.ID,
			QuestionText:   q.Text,
			QuestionType:   q.Type,
			OrderIndex:     q.OrderIndex,
			TotalResponses: len(answers),
			Summary:        summarize(q, answers),
			Responses:      make([]AggregatedAnswer, 0, len(answers)),
		}
		for _, a := range answers {
			agg.Responses = append(agg.Responses, AggregatedAnswer{
				RespondentName: a.respondent,
				Answer:         display(q, a.value),
				SubmittedAt:    a.submittedAt,
			})
		}
		out[q.ID] = agg
	}
	return out, nil
}
