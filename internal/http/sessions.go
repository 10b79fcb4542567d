package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"expenses/internal/cache"
	applog "expenses/internal/log"
	"expenses/internal/view"
)

const sessionCookie = "expenses_session"

// sessionStore maps session ids to controllers. Entries expire after ttl
// without a request.
type sessionStore struct {
	controllers *cache.LRUCache[*view.Controller]
	ttl         time.Duration
}

func newSessionStore(max int, ttl time.Duration) *sessionStore {
	return &sessionStore{
		controllers: cache.NewLRUCache[*view.Controller](max, ttl).WithSlidingExpiry(),
		ttl:         ttl,
	}
}

func (s *sessionStore) get(id string) (*view.Controller, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	return s.controllers.Get(id)
}

// session returns the controller of the requesting browser, creating and
// loading one on first visit.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *view.Controller {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		if c, ok := s.sessions.get(ck.Value); ok {
			// The server entry slides on every use, so the cookie has to follow.
			s.setSessionCookie(w, r, ck.Value)
			return c
		}
	}

	id := uuid.NewString()
	logger := s.logger.With(applog.FieldSessionID, id)
	c := view.New(s.gateway,
		view.WithMessages(s.msgs),
		view.WithLogger(logger.Base()),
		view.WithClock(s.now))

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := c.Load(ctx); err != nil {
		logger.WarnContext(ctx, "Initial load incomplete", applog.FieldError, err)
	}

	s.sessions.controllers.Set(id, c)
	s.setSessionCookie(w, r, id)
	logger.DebugContext(ctx, "Session created")
	return c
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessions.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
