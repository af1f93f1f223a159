package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeLockHeld, "another sync is running", nil).
		WithDetail("root", "/src/app").
		WithSuggestion("wait for it to finish")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: another sync is running")
	assert.Contains(t, out, "root: /src/app")
	assert.Contains(t, out, "Hint: wait for it to finish")
	assert.Contains(t, out, "Code: ERR_205_LOCK_HELD")
}

func TestFormatForCLI_StandardAndNil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
	assert.Contains(t, FormatForCLI(errors.New("boom")), "Code: ERR_601_INTERNAL")
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeRemoteStatus, "bad status", errors.New("500")).WithDetail("op", "add_file")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeRemoteStatus, got["code"])
	assert.Equal(t, "REMOTE", got["category"])
	assert.Equal(t, "500", got["cause"])
	assert.Equal(t, true, got["retryable"])

	data, jerr = FormatJSON(nil)
	require.NoError(t, jerr)
	assert.Equal(t, "null", string(data))
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))

	plain := LogAttrs(errors.New("x"))
	require.Len(t, plain, 1)
	assert.Equal(t, slog.String("error", "x"), plain[0])

	attrs := LogAttrs(New(ErrCodeVCSFailed, "git exited 128", errors.New("exit status 128")).WithDetail("root", "/r"))
	assert.Contains(t, attrs, slog.String("error_code", ErrCodeVCSFailed))
	assert.Contains(t, attrs, slog.String("cause", "exit status 128"))
	assert.Contains(t, attrs, slog.String("detail_root", "/r"))
}
