package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
templates:
  - professional_id: pro-1
    weekdays: [1, 2, 3]
    day_start: "09:00"
    day_end: "17:00"
    slot_minutes: 30
  - professional_id: pro-2
    weekdays: [6]
    day_start: "10:00"
    day_end: "14:00"
    slot_minutes: 60
`

func TestSeedTemplates(t *testing.T) {
	h := newHarness(t)
	logger := zerolog.Nop()

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	require.NoError(t, SeedTemplates(context.Background(), h.db, path, &logger))

	tpl, err := h.slots.GetTemplate(context.Background(), "pro-1")
	require.NoError(t, err)
	assert.Equal(t, 30, tpl.SlotMinutes)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}, tpl.Weekdays)

	tpl, err = h.slots.GetTemplate(context.Background(), "pro-2")
	require.NoError(t, err)
	assert.Equal(t, "10:00", tpl.DayStart)
}

func TestSeedTemplatesInvalidEntryAborts(t *testing.T) {
	h := newHarness(t)
	logger := zerolog.Nop()

	path := filepath.Join(t.TempDir(), "templates.yaml")
	bad := `
templates:
  - professional_id: pro-1
    weekdays: [1]
    day_start: "12:00"
    day_end: "09:00"
    slot_minutes: 30
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
	require.Error(t, SeedTemplates(context.Background(), h.db, path, &logger))
}

func TestSeedTemplatesEmptyPath(t *testing.T) {
	h := newHarness(t)
	logger := zerolog.Nop()
	require.NoError(t, SeedTemplates(context.Background(), h.db, "", &logger))
}
