// Package gate decides whether content hanging off a tour may still be
// changed. A tour becomes read-only the moment the wall clock passes its
// end date, so the answer is recomputed on every mutation.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TourEndedMessage is matched by clients as a substring; keep it stable.
const TourEndedMessage = "This tour has ended and is now read-only"

var (
	ErrNotFound  = errors.New("not found")
	ErrTourEnded = errors.New(TourEndedMessage)
)

// Kind names an entity whose owning tour the gate can resolve.
type Kind string

const (
	KindNote               Kind = "note"
	KindDiscussion         Kind = "discussion"
	KindDiscussionMessage  Kind = "discussion_message"
	KindActivityQuestion   Kind = "activity_question"
	KindDiscussionTeam     Kind = "discussion_team"
	KindDiscussionTeamNote Kind = "discussion_team_note"
	KindDiscussionQuestion Kind = "discussion_question"

	// Parents used when gating creation, before the entity exists.
	KindActivity Kind = "activity"
	KindTour     Kind = "tour"
)

// chains holds the join path from each kind to its tour's end date. Every
// query takes the entity id as its only parameter.
var chains = map[Kind]string{
	KindNote: `SELECT t.end_date FROM notes n
		JOIN activities a ON a.id = n.activity_id
		JOIN tours t ON t.id = a.tour_id
		WHERE n.id = ?`,
	KindDiscussion: `SELECT t.end_date FROM discussions d
		JOIN tours t ON t.id = d.tour_id
		WHERE d.id = ?`,
	KindDiscussionMessage: `SELECT t.end_date FROM discussion_messages m
		JOIN discussions d ON d.id = m.discussion_id
		JOIN tours t ON t.id = d.tour_id
		WHERE m.id = ?`,
	KindActivityQuestion: `SELECT t.end_date FROM activity_questions q
		JOIN activities a ON a.id = q.activity_id
		JOIN tours t ON t.id = a.tour_id
		WHERE q.id = ?`,
	KindDiscussionTeam: `SELECT t.end_date FROM discussion_teams dt
		JOIN activities a ON a.id = dt.activity_id
		JOIN tours t ON t.id = a.tour_id
		WHERE dt.id = ?`,
	KindDiscussionTeamNote: `SELECT t.end_date FROM discussion_team_notes tn
		JOIN discussion_teams dt ON dt.id = tn.team_id
		JOIN activities a ON a.id = dt.activity_id
		JOIN tours t ON t.id = a.tour_id
		WHERE tn.id = ?`,
	KindDiscussionQuestion: `SELECT t.end_date FROM discussion_questions q
		JOIN activities a ON a.id = q.activity_id
		JOIN tours t ON t.id = a.tour_id
		WHERE q.id = ?`,
	KindActivity: `SELECT t.end_date FROM activities a
		JOIN tours t ON t.id = a.tour_id
		WHERE a.id = ?`,
	KindTour: `SELECT t.end_date FROM tours t WHERE t.id = ?`,
}

// Kinds lists every kind the gate resolves.
func Kinds() []Kind {
	return []Kind{
		KindNote, KindDiscussion, KindDiscussionMessage, KindActivityQuestion,
		KindDiscussionTeam, KindDiscussionTeamNote, KindDiscussionQuestion,
		KindActivity, KindTour,
	}
}

// Lookup returns the end date of the tour owning (kind, id), or
// ErrNotFound when any link in the chain is missing.
type Lookup interface {
	TourEnd(ctx context.Context, kind Kind, id uint) (time.Time, error)
}

type SQLLookup struct {
	db *gorm.DB
}

func NewSQLLookup(db *gorm.DB) *SQLLookup {
	return &SQLLookup{db: db}
}

func (l *SQLLookup) TourEnd(ctx context.Context, kind Kind, id uint) (time.Time, error) {
	query, ok := chains[kind]
	if !ok {
		return time.Time{}, fmt.Errorf("gate: unknown entity kind %q", kind)
	}

	var row struct {
		EndDate time.Time
	}
	result := l.db.WithContext(ctx).Raw(query, id).Scan(&row)
	if result.Error != nil {
		return time.Time{}, fmt.Errorf("gate: resolve %s %d: %w", kind, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return time.Time{}, ErrNotFound
	}
	return row.EndDate, nil
}

type Gate struct {
	lookup Lookup
	now    func() time.Time
}

func New(lookup Lookup) *Gate {
	return &Gate{lookup: lookup, now: time.Now}
}

// WithClock replaces the wall clock, for tests and replay tooling.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// AssertMutable returns nil when the tour owning (kind, id) has not ended,
// ErrTourEnded when it has, and ErrNotFound when the entity or its tour is
// missing.
func (g *Gate) AssertMutable(ctx context.Context, kind Kind, id uint) error {
	end, err := g.lookup.TourEnd(ctx, kind, id)
	if err != nil {
		return err
	}
	if g.now().After(end) {
		metrics.GateRejections.WithLabelValues(string(kind)).Inc()
		logger.FromContext(ctx).Info("Rejected mutation on ended tour",
			zap.String("kind", string(kind)),
			zap.Uint("id", id),
			zap.Time("end_date", end),
		)
		return ErrTourEnded
	}
	return nil
}
