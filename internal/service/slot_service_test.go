package service

import (
	"context"
	"testing"
	"time"

	"agendum/internal/database"
	"agendum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayTemplate(professionalID string) *models.AvailabilityTemplate {
	return &models.AvailabilityTemplate{
		ProfessionalID: professionalID,
		Weekdays:       []time.Weekday{time.Monday},
		DayStart:       "09:00",
		DayEnd:         "12:00",
		SlotMinutes:    60,
	}
}

func TestGenerateSlotsCoversWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Start.Equal(monday.Add(9*time.Hour)))
	assert.True(t, slots[1].Start.Equal(monday.Add(10*time.Hour)))
	assert.True(t, slots[2].Start.Equal(monday.Add(11*time.Hour)))
	assert.True(t, slots[2].End.Equal(monday.Add(12*time.Hour)))
}

func TestGenerateSlotsExcludesBusyIntervals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	appt := makeAppointment("pro-1", monday.Add(10*time.Hour), monday.Add(11*time.Hour))
	require.NoError(t, h.appts.CreateAppointment(ctx, appt))
	_, err := h.appts.ConfirmAppointment(ctx, appt.ID)
	require.NoError(t, err)

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(monday.Add(9*time.Hour)))
	assert.True(t, slots[1].Start.Equal(monday.Add(11*time.Hour)))
}

func TestGenerateSlotsRequestedAlsoOccupies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	// a Requested appointment hides its slot even before confirmation
	appt := makeAppointment("pro-1", monday.Add(9*time.Hour), monday.Add(10*time.Hour))
	require.NoError(t, h.appts.CreateAppointment(ctx, appt))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestGenerateSlotsExcludesBlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	block := &models.Block{
		ProfessionalID: "pro-1",
		Start:          monday.Add(9*time.Hour + 30*time.Minute),
		End:            monday.Add(10*time.Hour + 30*time.Minute),
		Reason:         "training",
	}
	require.NoError(t, h.appts.CreateBlock(ctx, block))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	// the block straddles two slots, only 11:00 survives
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Start.Equal(monday.Add(11*time.Hour)))
}

func TestGenerateSlotsOffDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", nextWeekday(time.Tuesday))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsNoTemplate(t *testing.T) {
	h := newHarness(t)

	_, err := h.slots.GenerateSlots(context.Background(), "pro-unknown", nextWeekday(time.Monday))
	require.ErrorIs(t, err, database.ErrNotConfigured)
}

func TestGenerateSlotsCacheInvalidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	// confirmation drops the cached day, so the next read sees the hole
	appt := makeAppointment("pro-1", monday.Add(10*time.Hour), monday.Add(11*time.Hour))
	require.NoError(t, h.appts.CreateAppointment(ctx, appt))
	_, err = h.appts.ConfirmAppointment(ctx, appt.ID)
	require.NoError(t, err)

	slots, err = h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestGenerateSlotsUnevenWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	tpl := mondayTemplate("pro-1")
	tpl.DayEnd = "11:30"
	require.NoError(t, h.slots.SetTemplate(ctx, tpl))

	// a partial trailing slot is never offered
	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[1].End.Equal(monday.Add(11*time.Hour)))
}

func TestSetTemplateRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	tpl := mondayTemplate("pro-1")
	tpl.DayStart = "13:00"
	err := h.slots.SetTemplate(context.Background(), tpl)
	require.ErrorIs(t, err, database.ErrInvalidTemplate)
}

func TestSetTemplateDropsCachedSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	monday := nextWeekday(time.Monday)

	require.NoError(t, h.slots.SetTemplate(ctx, mondayTemplate("pro-1")))

	slots, err := h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	// Shrinking the window must take effect immediately, not after the
	// cache TTL runs out.
	shrunk := mondayTemplate("pro-1")
	shrunk.DayEnd = "10:00"
	require.NoError(t, h.slots.SetTemplate(ctx, shrunk))

	slots, err = h.slots.GenerateSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Start.Equal(monday.Add(9*time.Hour)))
	assert.True(t, slots[0].End.Equal(monday.Add(10*time.Hour)))
}
