package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execline/internal/config"
	"execline/internal/engine"
)

func testEngine() engine.Engine {
	cfg := config.Default()
	cfg.Timezone = "UTC"
	return engine.Engine{Config: cfg}
}

func TestParseDay(t *testing.T) {
	e := testEngine()

	d, err := parseDay(e, "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDay(e, "2025-03-10")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), d.UTC())

	_, err = parseDay(e, "10/03/2025")
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")
}

func TestParseInstant(t *testing.T) {
	e := testEngine()

	ts, err := parseInstant(e, "2025-03-10T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), ts.UTC())

	ts, err = parseInstant(e, "2025-03-10 14:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC), ts.UTC())

	_, err = parseInstant(e, "yesterday")
	assert.Error(t, err)
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, optionalString(""))
	assert.Equal(t, "x", deref(optionalString("x")))
	assert.Equal(t, "", deref(nil))
}
