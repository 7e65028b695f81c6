package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tasbeeh/internal/core"
	"tasbeeh/internal/inspiration"
	applog "tasbeeh/internal/log"
)

const maxBodyBytes = 64 << 10

// entryRequest is the JSON body of POST /api/entries. A missing count
// means a single deed.
type entryRequest struct {
	EnteredBy string `json:"entered_by"`
	Category  string `json:"category"`
	Count     *int64 `json:"count"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note"`
}

func (e entryRequest) contribution() core.NewContribution {
	count := int64(1)
	if e.Count != nil {
		count = *e.Count
	}
	return core.NewContribution{
		EnteredBy: sanitizeInput(e.EnteredBy),
		Category:  sanitizeInput(e.Category),
		Count:     count,
		Amount:    e.Amount,
		Note:      sanitizeInput(e.Note),
	}
}

type preferenceRequest struct {
	ReminderTime string `json:"reminder_time"`
	ReminderText string `json:"reminder_text"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.service.Ready(r.Context()) {
		writeErrorMessage(w, http.StatusServiceUnavailable, "ledger not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := s.service.AddEntry(r.Context(), req.contribution())
	if err != nil {
		s.logFailure(r, "Failed to add entry", applog.OpAddEntry, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Entries(r.Context())
	if err != nil {
		s.logFailure(r, "Failed to fetch entries", applog.OpFetchAll, err)
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []core.Contribution{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.logFailure(r, "Failed to build summary", applog.OpSummary, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Preference(r.Context(), r.PathValue("user")))
}

func (s *Server) handleSavePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.service.SavePreference(r.Context(), r.PathValue("user"),
		sanitizeInput(req.ReminderTime), sanitizeInput(req.ReminderText))
	if err != nil {
		s.logFailure(r, "Failed to save preference", applog.OpSavePreference, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.service.Reminder(r.Context(), r.PathValue("user"))
	if err != nil {
		s.logFailure(r, "Failed to evaluate reminder", applog.OpReminder, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, inspiration.For(s.now()))
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members := s.members
	if len(members) == 0 {
		members = []string{core.DefaultMember}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members":    members,
		"categories": core.AllCategories(),
	})
}

func (s *Server) logFailure(r *http.Request, msg, op string, err error) {
	ctx := r.Context()
	fields := applog.NewFields().WithOperation(op).WithError(err)
	logger := applog.FromContext(ctx)
	if errors.Is(err, core.ErrInvalidEntry) {
		logger.WarnContext(ctx, msg, fields.ToSlice()...)
		return
	}
	logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
