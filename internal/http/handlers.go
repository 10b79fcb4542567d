package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/view"
)

// pageData is what index.html renders.
type pageData struct {
	Msgs       *i18n.Messages
	Snap       view.Snapshot
	FilterFrom string
	FilterTo   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r)
	s.render(w, r, http.StatusOK, c.Snapshot())
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, snap view.Snapshot) {
	data := pageData{Msgs: s.msgs, Snap: snap}
	if snap.Filter.From != nil {
		data.FilterFrom = snap.Filter.From.String()
	}
	if snap.Filter.To != nil {
		data.FilterTo = snap.Filter.To.String()
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f := view.Form{
		Description: sanitizeInput(r.PostFormValue("description")),
		Amount:      strings.TrimSpace(r.PostFormValue("amount")),
		Date:        strings.TrimSpace(r.PostFormValue("date")),
		CategoryID:  strings.TrimSpace(r.PostFormValue("category_id")),
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	_, err := c.Save(ctx, f)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		s.render(w, r, http.StatusUnprocessableEntity, c.Snapshot())
		return
	case errors.Is(err, view.ErrWriteInFlight):
		c.SetError(s.msgs.WriteInFlight)
	}
	redirectHome(w, r)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c := s.session(w, r)
	if err := c.StartEditID(id); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Edit of unknown expense",
			applog.FieldExpenseID, id)
	}
	redirectHome(w, r)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).CancelEdit()
	redirectHome(w, r)
}

// handleDelete treats the form field confirm=yes as the user's answer.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c := s.session(w, r)
	answer := view.Answer(r.PostFormValue("confirm") == "yes")

	ctx, cancel := s.requestContext(r)
	defer cancel()
	if _, err := c.Delete(ctx, id, answer); errors.Is(err, view.ErrWriteInFlight) {
		c.SetError(s.msgs.WriteInFlight)
	}
	redirectHome(w, r)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r)
	q := r.URL.Query()
	rng, err := core.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		c.SetError(s.msgs.InvalidFilter)
	} else {
		c.SetFilter(rng)
	}
	redirectHome(w, r)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c := s.session(w, r)
	var buf bytes.Buffer
	if err := c.ExportCSV(&buf); err != nil {
		if !errors.Is(err, view.ErrNothingToExport) {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
				applog.FieldOperation, applog.OpExport,
				applog.FieldError, err)
			c.SetError(s.msgs.ExportFailed)
		}
		redirectHome(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.CSVFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).DismissError()
	redirectHome(w, r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the data backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.gateway.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid expense id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
