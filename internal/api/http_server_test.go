package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"agendum/internal/config"
	"agendum/internal/database"
	"agendum/internal/events"
	"agendum/internal/export"
	"agendum/internal/models"
	"agendum/internal/repository"
	"agendum/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "agenda.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := repository.NewMemorySlotCache(time.Minute)
	sched := config.SchedulingConfig{MaxTxRetries: 3, RetryBaseMs: 5, BookingHorizonDays: 90}
	appts := service.NewAppointmentService(db, events.NewEventBus(), nil, cache, sched, &logger)
	slots := service.NewSlotService(db, cache, &logger)
	exporter := export.NewAgendaExporter(db, t.TempDir(), &logger)

	srv := NewHTTPServer(cfg, appts, slots, exporter, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func futureMonday() time.Time {
	day := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func createVia(t *testing.T, ts *httptest.Server, start, end time.Time) models.Appointment {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments", map[string]any{
		"professional_id": "pro-1",
		"client_name":     "Ada",
		"client_phone":    "+100",
		"service":         "consultation",
		"start":           start,
		"end":             end,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var appt models.Appointment
	require.NoError(t, json.Unmarshal(raw, &appt))
	return appt
}

func TestAppointmentLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	appt := createVia(t, ts, day.Add(10*time.Hour), day.Add(11*time.Hour))
	assert.Equal(t, models.StatusRequested, appt.Status)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var confirmed models.Appointment
	require.NoError(t, json.Unmarshal(raw, &confirmed))
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	// overlapping appointment loses with 409
	other := createVia(t, ts, day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute))
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+other.ID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// cancel, then cancel again
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateValidationOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments", map[string]any{
		"professional_id": "pro-1",
		"start":           day.Add(11 * time.Hour),
		"end":             day.Add(10 * time.Hour),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments", map[string]any{
		"start": day.Add(10 * time.Hour),
		"end":   day.Add(11 * time.Hour),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownAppointment(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/appointments/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRescheduleOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	appt := createVia(t, ts, day.Add(10*time.Hour), day.Add(11*time.Hour))

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/reschedule", map[string]any{
		"start":  day.Add(14 * time.Hour),
		"end":    day.Add(15 * time.Hour),
		"reason": "clash",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var req models.RescheduleRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, models.RequestPending, req.Status)

	// second pending proposal is rejected
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/reschedule", map[string]any{
		"start": day.Add(16 * time.Hour),
		"end":   day.Add(17 * time.Hour),
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/v1/reschedules/"+req.ID+"/accept", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/v1/appointments/"+appt.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var moved models.Appointment
	require.NoError(t, json.Unmarshal(raw, &moved))
	assert.True(t, moved.Start.Equal(day.Add(14*time.Hour)))

	// accepting twice is a conflict
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/reschedules/"+req.ID+"/accept", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSlotsOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	// no template yet
	resp, _ := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/slots/pro-1?date=%s", ts.URL, day.Format("2006-01-02")), nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/templates/pro-1", map[string]any{
		"weekdays":     []int{1},
		"day_start":    "09:00",
		"day_end":      "12:00",
		"slot_minutes": 60,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/slots/pro-1?date=%s", ts.URL, day.Format("2006-01-02")), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Slots []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Len(t, out.Slots, 3)

	// invalid template is 422
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/templates/pro-1", map[string]any{
		"weekdays":     []int{1},
		"day_start":    "13:00",
		"day_end":      "12:00",
		"slot_minutes": 60,
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBlocksOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/v1/blocks", map[string]any{
		"professional_id": "pro-1",
		"start":           day.Add(9 * time.Hour),
		"end":             day.Add(12 * time.Hour),
		"reason":          "conference",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var block models.Block
	require.NoError(t, json.Unmarshal(raw, &block))
	require.NotEmpty(t, block.ID)

	resp, raw = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/blocks?professional_id=pro-1&from=%s&to=%s",
		ts.URL, day.Format("2006-01-02"), day.Format("2006-01-02")), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Blocks []models.Block `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Len(t, listed.Blocks, 1)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/blocks/"+block.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/blocks/"+block.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotesOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	appt := createVia(t, ts, day.Add(10*time.Hour), day.Add(11*time.Hour))

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/appointments/"+appt.ID+"/notes", map[string]any{
		"text":   "bring documents",
		"author": "reception",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/v1/appointments/"+appt.ID+"/notes", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Notes []models.Note `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Notes, 1)
	assert.Equal(t, "bring documents", out.Notes[0].Text)
}

func TestExportOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	day := futureMonday()

	createVia(t, ts, day.Add(10*time.Hour), day.Add(11*time.Hour))

	url := fmt.Sprintf("%s/api/v1/exports/agenda?professional_id=pro-1&from=%s&to=%s",
		ts.URL, day.Format("2006-01-02"), day.Format("2006-01-02"))
	resp, raw := doJSON(t, http.MethodPost, url, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var out map[string]string
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.FileExists(t, out["file"])
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
