package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/gate"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/surveys"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var (
	errInvalidID = errors.New("invalid id")
	errNotAuthor = errors.New("caller is not the author")
)

// clientMessages holds the response text for errors whose message is part
// of the API. Clients match some of these strings.
var clientMessages = []struct {
	err     error
	status  int
	message string
}{
	{gate.ErrTourEnded, http.StatusForbidden, gate.TourEndedMessage},
	{gate.ErrNotFound, http.StatusNotFound, "Not found"},
	{gorm.ErrRecordNotFound, http.StatusNotFound, "Not found"},
	{surveys.ErrSurveyNotFound, http.StatusNotFound, "Survey not found"},
	{surveys.ErrInvalidToken, http.StatusNotFound, "Invalid or expired survey link"},
	{surveys.ErrEmailRequired, http.StatusBadRequest, "Email is required for anonymous survey responses"},
	{surveys.ErrInvalidEmail, http.StatusBadRequest, "Invalid email address"},
	{errInvalidID, http.StatusBadRequest, "Invalid ID"},
	{surveys.ErrSurveyClosed, http.StatusConflict, "Survey is not accepting responses"},
	{surveys.ErrForbidden, http.StatusForbidden, "Insufficient permissions"},
	{errNotAuthor, http.StatusForbidden, "Only the author or an admin can change this"},
}

// Handler holds the dependencies shared by every HTTP controller.
type Handler struct {
	db      *gorm.DB
	gate    *gate.Gate
	surveys *surveys.Engine
	auth    *auth.Authenticator
	tokens  *auth.Tokens
	public  *ipLimiter
	now     func() time.Time
}

type Deps struct {
	DB          *gorm.DB
	Gate        *gate.Gate
	Surveys     *surveys.Engine
	Auth        *auth.Authenticator
	Tokens      *auth.Tokens
	PublicRate  float64
	PublicBurst int
}

func New(d Deps) *Handler {
	return &Handler{
		db:      d.DB,
		gate:    d.Gate,
		surveys: d.Surveys,
		auth:    d.Auth,
		tokens:  d.Tokens,
		public:  newIPLimiter(rate.Limit(d.PublicRate), d.PublicBurst),
		now:     time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			writeMessage(w, m.status, m.message)
			return
		}
	}
	if errors.Is(err, surveys.ErrInvalidAnswer) {
		// carries the offending question and reason
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.FromContext(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// caller returns the identity attached by auth.Require.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// limiterIdle is how long a client address may go unseen before its
// limiter is dropped.
const limiterIdle = 10 * time.Minute

// ipLimiter throttles public endpoints per client address. Entries idle for
// longer than limiterIdle are swept on access.
type ipLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*clientLimiter
	now       func() time.Time
	lastSweep time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{limit: limit, burst: burst, limiters: map[string]*clientLimiter{}, now: time.Now}
}

func (l *ipLimiter) allow(r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdle {
		for addr, c := range l.limiters {
			if now.Sub(c.seen) >= limiterIdle {
				delete(l.limiters, addr)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.limiters[host]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[host] = c
	}
	c.seen = now
	l.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

func (l *ipLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r) {
			writeMessage(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}
