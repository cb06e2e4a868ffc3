package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Warn(Fields{Service: "console", OrderID: "A", Step: "sms_confirm", Status: "failed", Message: "sms send failed"}, errors.New("status 500"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "console", got["service"])
	assert.Equal(t, "A", got["order_id"])
	assert.Equal(t, "sms_confirm", got["step"])
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "status 500", got["error"])
	assert.Equal(t, "warning", got["level"])
	assert.Equal(t, "sms send failed", got["msg"])
	_, hasEvent := got["event_id"]
	assert.False(t, hasEvent)
}

func TestLogFallsBackToStatusForMessage(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Log(Fields{Service: "console", OrderID: "A", Step: "print", Status: "printed"})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "print printed", got["msg"])
	assert.Equal(t, "info", got["level"])
}
