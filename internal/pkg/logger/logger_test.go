package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactPhone(t *testing.T) {
	assert.Equal(t, "***4567", RedactPhone("+971 50 123 4567"))
	assert.Equal(t, "***", RedactPhone("123"))
}

func TestLogRedactsFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("sms queued", "phone", "+989121234567", "note", "contact me at jane.doe@example.com")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "***4567", entry["phone"])
	assert.Equal(t, "contact me at ja***@example.com", entry["note"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	defer func() {
		SetLevel(INFO)
		SetOutput(nil)
	}()

	Info("hidden")
	assert.Zero(t, buf.Len())
	Warn("shown")
	assert.NotZero(t, buf.Len())
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestWithAddsBoundFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	log := With("request_id", "r-1")
	log.Warn("lock wait exceeded", "attempt", 3, "waited", 250*time.Millisecond, "err", errors.New("busy"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, float64(3), entry["attempt"])
	assert.Equal(t, "250ms", entry["waited"])
	assert.Equal(t, "busy", entry["err"])
}

func TestOddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("dangling", "ok", true, "orphan")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, true, entry["ok"])
	assert.Equal(t, "orphan", entry["!BADKEY"])
}

func TestRedactionCanBeDisabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetRedactPII(false)
	defer func() {
		SetRedactPII(true)
		SetOutput(nil)
	}()

	Info("contact viewed", "email", "jane.doe@example.com")
	assert.Contains(t, buf.String(), "jane.doe@example.com")
}
