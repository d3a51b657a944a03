package surveys

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/nikhilsahni7/TourDesk/models"
)

const dateLayout = "2006-01-02"

// AnswerInput is one element of the "responses" array in a submission
// body. Only the field matching the question's type may be set.
type AnswerInput struct {
	QuestionID        uint     `json:"question_id"`
	TextResponse      *string  `json:"text_response,omitempty"`
	NumberResponse    *float64 `json:"number_response,omitempty"`
	DateResponse      *string  `json:"date_response,omitempty"`
	SelectedOptionIDs []int64  `json:"selected_option_ids,omitempty"`
	RatingResponse    *int     `json:"rating_response,omitempty"`
}

// Value is a typed answer. Each implementation owns exactly one column of
// models.QuestionResponse.
type Value interface {
	apply(row *models.QuestionResponse)
	input(questionID uint) AnswerInput
}

type (
	Text   string
	YesNo  string
	Number float64
	Date   time.Time
	Rating int
	Choice []int64
)

func (v Text) apply(row *models.QuestionResponse) {
	s := string(v)
	row.TextResponse = &s
}

func (v YesNo) apply(row *models.QuestionResponse) {
	s := string(v)
	row.TextResponse = &s
}

func (v Number) apply(row *models.QuestionResponse) {
	f := float64(v)
	row.NumberResponse = &f
}

func (v Date) apply(row *models.QuestionResponse) {
	t := time.Time(v)
	row.DateResponse = &t
}

func (v Rating) apply(row *models.QuestionResponse) {
	r := int(v)
	row.RatingResponse = &r
}

func (v Choice) apply(row *models.QuestionResponse) {
	row.SelectedOptionIDs = pq.Int64Array(append([]int64(nil), v...))
}

func (v Text) input(id uint) AnswerInput {
	s := string(v)
	return AnswerInput{QuestionID: id, TextResponse: &s}
}

func (v YesNo) input(id uint) AnswerInput {
	s := string(v)
	return AnswerInput{QuestionID: id, TextResponse: &s}
}

func (v Number) input(id uint) AnswerInput {
	f := float64(v)
	return AnswerInput{QuestionID: id, NumberResponse: &f}
}

func (v Date) input(id uint) AnswerInput {
	s := time.Time(v).Format(dateLayout)
	return AnswerInput{QuestionID: id, DateResponse: &s}
}

func (v Rating) input(id uint) AnswerInput {
	r := int(v)
	return AnswerInput{QuestionID: id, RatingResponse: &r}
}

func (v Choice) input(id uint) AnswerInput {
	return AnswerInput{QuestionID: id, SelectedOptionIDs: append([]int64(nil), v...)}
}

// Answer pairs a question with its decoded value. A nil Value means the
// caller sent the question with no value, which clears it.
type Answer struct {
	QuestionID uint
	Value      Value
}

type slot int

const (
	slotText slot = iota
	slotNumber
	slotDate
	slotRating
	slotOptions
)

var slotNames = map[slot]string{
	slotText:    "text_response",
	slotNumber:  "number_response",
	slotDate:    "date_response",
	slotRating:  "rating_response",
	slotOptions: "selected_option_ids",
}

func slotFor(t models.QuestionType) (slot, bool) {
	switch t {
	case models.QuestionText, models.QuestionTextarea, models.QuestionYesNo:
		return slotText, true
	case models.QuestionNumber:
		return slotNumber, true
	case models.QuestionDate:
		return slotDate, true
	case models.QuestionRating:
		return slotRating, true
	case models.QuestionMultipleChoice, models.QuestionCheckbox:
		return slotOptions, true
	}
	return 0, false
}

func (in AnswerInput) setSlots() []slot {
	var set []slot
	if in.TextResponse != nil {
		set = append(set, slotText)
	}
	if in.NumberResponse != nil {
		set = append(set, slotNumber)
	}
	if in.DateResponse != nil {
		set = append(set, slotDate)
	}
	if in.RatingResponse != nil {
		set = append(set, slotRating)
	}
	if len(in.SelectedOptionIDs) > 0 {
		set = append(set, slotOptions)
	}
	return set
}

func invalid(q *models.SurveyQuestion, format string, args ...interface{}) error {
	return fmt.Errorf("%w: question %d: %s", ErrInvalidAnswer, q.ID, fmt.Sprintf(format, args...))
}

// decodeValue turns the wire shape into the typed value for q, rejecting
// values sent in a column that does not belong to q's type.
func decodeValue(q *models.SurveyQuestion, in AnswerInput) (Value, error) {
	want, ok := slotFor(q.Type)
	if !ok {
		return nil, invalid(q, "unsupported question type %q", q.Type)
	}
	for _, s := range in.setSlots() {
		if s != want {
			return nil, invalid(q, "%s is not accepted for %s questions", slotNames[s], q.Type)
		}
	}

	switch q.Type {
	case models.QuestionText, models.QuestionTextarea:
		if in.TextResponse == nil {
			return nil, nil
		}
		return Text(*in.TextResponse), nil

	case models.QuestionYesNo:
		if in.TextResponse == nil {
			return nil, nil
		}
		return YesNo(*in.TextResponse), nil

	case models.QuestionNumber:
		if in.NumberResponse == nil {
			return nil, nil
		}
		return Number(*in.NumberResponse), nil

	case models.QuestionDate:
		if in.DateResponse == nil {
			return nil, nil
		}
		t, err := parseDate(*in.DateResponse)
		if err != nil {
			return nil, invalid(q, "date must be YYYY-MM-DD or RFC 3339")
		}
		return Date(t), nil

	case models.QuestionRating:
		if in.RatingResponse == nil {
			return nil, nil
		}
		if r := *in.RatingResponse; r < 1 || r > 5 {
			return nil, invalid(q, "rating must be between 1 and 5")
		}
		return Rating(*in.RatingResponse), nil

	default:
		if len(in.SelectedOptionIDs) == 0 {
			return nil, nil
		}
		if q.Type == models.QuestionMultipleChoice && len(in.SelectedOptionIDs) != 1 {
			return nil, invalid(q, "exactly one option must be selected")
		}
		known := make(map[int64]bool, len(q.Options))
		for _, o := range q.Options {
			known[int64(o.ID)] = true
		}
		seen := make(map[int64]bool, len(in.SelectedOptionIDs))
		picked := make(Choice, 0, len(in.SelectedOptionIDs))
		for _, id := range in.SelectedOptionIDs {
			if !known[id] {
				return nil, invalid(q, "option %d does not belong to this question", id)
			}
			if !seen[id] {
				seen[id] = true
				picked = append(picked, id)
			}
		}
		return picked, nil
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// decodeAnswers validates a whole payload against the survey's questions.
// A question id appearing twice keeps its last value.
func decodeAnswers(questions []models.SurveyQuestion, inputs []AnswerInput) ([]Answer, error) {
	byID := make(map[uint]*models.SurveyQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	index := make(map[uint]int, len(inputs))
	answers := make([]Answer, 0, len(inputs))
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %d is not part of this survey", ErrInvalidAnswer, in.QuestionID)
		}
		v, err := decodeValue(q, in)
		if err != nil {
			return nil, err
		}
		if i, dup := index[q.ID]; dup {
			answers[i].Value = v
			continue
		}
		index[q.ID] = len(answers)
		answers = append(answers, Answer{QuestionID: q.ID, Value: v})
	}
	return answers, nil
}

// checkValues rejects answers that carry no value. Only save-progress uses
// an empty answer, to clear a question.
func checkValues(questions []models.SurveyQuestion, answers []Answer) error {
	byID := make(map[uint]*models.SurveyQuestion, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	for _, a := range answers {
		if a.Value == nil {
			return invalid(byID[a.QuestionID], "a value is required")
		}
	}
	return nil
}

// checkRequired reports the first required question left unanswered.
func checkRequired(questions []models.SurveyQuestion, answers []Answer) error {
	answered := make(map[uint]bool, len(answers))
	for _, a := range answers {
		if a.Value != nil {
			answered[a.QuestionID] = true
		}
	}
	for i := range questions {
		if questions[i].IsRequired && !answered[questions[i].ID] {
			return invalid(&questions[i], "an answer is required")
		}
	}
	return nil
}

func rowsFor(responseID uint, answers []Answer, now time.Time) []models.QuestionResponse {
	rows := make([]models.QuestionResponse, 0, len(answers))
	for _, a := range answers {
		if a.Value == nil {
			continue
		}
		row := models.QuestionResponse{ResponseID: responseID, QuestionID: a.QuestionID, CreatedAt: now}
		a.Value.apply(&row)
		rows = append(rows, row)
	}
	return rows
}

// valueOf reads a stored row back through the same type-to-column mapping
// used when writing it. It returns nil when the column for q's type is
// empty.
func valueOf(q *models.SurveyQuestion, row *models.QuestionResponse) Value {
	switch q.Type {
	case models.QuestionText, models.QuestionTextarea:
		if row.TextResponse != nil {
			return Text(*row.TextResponse)
		}
	case models.QuestionYesNo:
		if row.TextResponse != nil {
			return YesNo(*row.TextResponse)
		}
	case models.QuestionNumber:
		if row.NumberResponse != nil {
			return Number(*row.NumberResponse)
		}
	case models.QuestionDate:
		if row.DateResponse != nil {
			return Date(*row.DateResponse)
		}
	case models.QuestionRating:
		if row.RatingResponse != nil {
			return Rating(*row.RatingResponse)
		}
	case models.QuestionMultipleChoice, models.QuestionCheckbox:
		if len(row.SelectedOptionIDs) > 0 {
			return Choice(row.SelectedOptionIDs)
		}
	}
	return nil
}

// display renders a value for report views: raw values for scalar types,
// option text for choices.
func display(q *models.SurveyQuestion, v Value) interface{} {
	switch val := v.(type) {
	case Text:
		return string(val)
	case YesNo:
		return string(val)
	case Number:
		return float64(val)
	case Date:
		return time.Time(val).Format(dateLayout)
	case Rating:
		return int(val)
	case Choice:
		texts := make(map[int64]string, len(q.Options))
		for _, o := range q.Options {
			texts[int64(o.ID)] = o.Text
		}
		out := make([]string, 0, len(val))
		for _, id := range val {
			if t, ok := texts[id]; ok {
				out = append(out, t)
			} else {
				out = append(out, "option "+strconv.FormatInt(id, 10))
			}
		}
		return out
	}
	return nil
}
