package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"agendum/internal/database"
	"agendum/internal/models"
	"agendum/internal/service"
)

// mapError translates store sentinels into HTTP status codes. Conflicts and
// resolution races are 409; configuration problems are 422.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrConflictDetected),
		errors.Is(err, database.ErrAlreadyResolved),
		errors.Is(err, database.ErrPendingReschedule):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrNotConfigured),
		errors.Is(err, database.ErrInvalidTemplate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

// rangeFromQuery reads from/to dates, defaulting to the next 30 days.
func rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from, to := now, now.AddDate(0, 0, 30)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1) // inclusive end date
	}
	return from, to, nil
}

type createAppointmentRequest struct {
	ProfessionalID string    `json:"professional_id"`
	ClientID       string    `json:"client_id"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	Service        string    `json:"service"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// handleAppointments serves POST (create) and GET (list) on the collection.
func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body createAppointmentRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.ProfessionalID == "" {
			writeError(w, http.StatusBadRequest, "professional_id is required")
			return
		}
		if !s.auth.AllowsProfessional(r, body.ProfessionalID) {
			writeError(w, http.StatusForbidden, "api key is scoped to another professional")
			return
		}

		appt := &models.Appointment{
			ProfessionalID: body.ProfessionalID,
			ClientID:       body.ClientID,
			ClientName:     body.ClientName,
			ClientPhone:    body.ClientPhone,
			Service:        body.Service,
			Start:          body.Start,
			End:            body.End,
		}
		if err := s.appts.CreateAppointment(r.Context(), appt); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)

	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			writeError(w, http.StatusBadRequest, "professional_id is required")
			return
		}
		if !s.auth.AllowsProfessional(r, professionalID) {
			writeError(w, http.StatusForbidden, "api key is scoped to another professional")
			return
		}
		from, to, err := rangeFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		appts, err := s.appts.ListAppointments(r.Context(), professionalID, from, to)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type proposeRescheduleRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

type addNoteRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// handleAppointmentByID routes /api/v1/appointments/{id}[/action].
func (s *HTTPServer) handleAppointmentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/appointments/")
	parts := strings.SplitN(rest, "/", 2)
	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = strings.Trim(parts[1], "/")
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		appt, err := s.appts.GetAppointment(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)

	case action == "confirm" && r.Method == http.MethodPost:
		appt, err := s.appts.ConfirmAppointment(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)

	case action == "cancel" && r.Method == http.MethodPost:
		appt, err := s.appts.CancelAppointment(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)

	case action == "reschedule" && r.Method == http.MethodPost:
		var body proposeRescheduleRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		req, err := s.appts.ProposeReschedule(r.Context(), id, body.Start, body.End, body.Reason)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)

	case action == "notes" && r.Method == http.MethodPost:
		var body addNoteRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		note, err := s.appts.AddNote(r.Context(), id, body.Text, body.Author)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, note)

	case action == "notes" && r.Method == http.MethodGet:
		notes, err := s.appts.ListNotes(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRescheduleByID routes /api/v1/reschedules/{id}[/accept|/reject].
func (s *HTTPServer) handleRescheduleByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reschedules/")
	parts := strings.SplitN(rest, "/", 2)
	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, "request id is required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = strings.Trim(parts[1], "/")
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		req, err := s.appts.GetRescheduleRequest(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	case action == "accept" && r.Method == http.MethodPost:
		req, err := s.appts.AcceptReschedule(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	case action == "reject" && r.Method == http.MethodPost:
		req, err := s.appts.RejectReschedule(r.Context(), id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSlots serves GET /api/v1/slots/{professionalID}?date=YYYY-MM-DD.
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	professionalID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/slots/"), "/")
	if professionalID == "" || strings.Contains(professionalID, "/") {
		writeError(w, http.StatusBadRequest, "professional id is required")
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.slots.GenerateSlots(r.Context(), professionalID, date)
	if err != nil {
		mapError(w, err)
		return
	}

	type slotDTO struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{Start: slot.Start, End: slot.End})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"professional_id": professionalID,
		"date":            date.Format("2006-01-02"),
		"slots":           out,
	})
}

// handleTemplates serves GET and PUT on /api/v1/templates/{professionalID}.
func (s *HTTPServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	professionalID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/templates/"), "/")
	if professionalID == "" || strings.Contains(professionalID, "/") {
		writeError(w, http.StatusBadRequest, "professional id is required")
		return
	}
	if !s.auth.AllowsProfessional(r, professionalID) {
		writeError(w, http.StatusForbidden, "api key is scoped to another professional")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tpl, err := s.slots.GetTemplate(r.Context(), professionalID)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)

	case http.MethodPut:
		var tpl models.AvailabilityTemplate
		if !decodeJSON(w, r, &tpl) {
			return
		}
		tpl.ProfessionalID = professionalID
		if err := s.slots.SetTemplate(r.Context(), &tpl); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tpl)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createBlockRequest struct {
	ProfessionalID string    `json:"professional_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason"`
}

func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body createBlockRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if !s.auth.AllowsProfessional(r, body.ProfessionalID) {
			writeError(w, http.StatusForbidden, "api key is scoped to another professional")
			return
		}
		block := &models.Block{
			ProfessionalID: body.ProfessionalID,
			Start:          body.Start,
			End:            body.End,
			Reason:         body.Reason,
		}
		if err := s.appts.CreateBlock(r.Context(), block); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, block)

	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			writeError(w, http.StatusBadRequest, "professional_id is required")
			return
		}
		from, to, err := rangeFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		blocks, err := s.appts.ListBlocks(r.Context(), professionalID, from, to)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/blocks/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "block id is required")
		return
	}
	if err := s.appts.DeleteBlock(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleExport builds an Excel agenda for a professional and period.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusUnprocessableEntity, "exports are not configured")
		return
	}

	professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
	if professionalID == "" {
		writeError(w, http.StatusBadRequest, "professional_id is required")
		return
	}
	if !s.auth.AllowsProfessional(r, professionalID) {
		writeError(w, http.StatusForbidden, "api key is scoped to another professional")
		return
	}
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	path, err := s.exporter.Export(r.Context(), professionalID, from, to)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}
