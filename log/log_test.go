package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "clean string passes through", input: "deposit accepted", want: "deposit accepted"},
		{name: "newline escaped", input: "line1\nline2", want: `line1\nline2`},
		{name: "carriage return escaped", input: "a\rb", want: `a\rb`},
		{name: "tab escaped", input: "a\tb", want: `a\tb`},
		{name: "forged log entry neutralized", input: "user\n[ERROR] fake", want: `user\n[ERROR] fake`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeString(tt.input))
		})
	}
}

func TestSanitizeArgs(t *testing.T) {
	got := sanitizeArgs([]any{"a\nb", 42, nil, "c\td"})
	assert.Equal(t, []any{`a\nb`, 42, nil, `c\td`}, got)
}

func TestNewZap(t *testing.T) {
	logger, level, err := NewZap(Config{
		Environment:     EnvironmentLocal,
		OTelLibraryName: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, "debug", level.String())

	withFields := logger.WithFields("owner", "alice")
	assert.NotNil(t, withFields)
}

func TestNewZapValidation(t *testing.T) {
	_, _, err := NewZap(Config{Environment: EnvironmentLocal})
	assert.Error(t, err)

	_, _, err = NewZap(Config{Environment: "mars", OTelLibraryName: "test"})
	assert.Error(t, err)

	_, _, err = NewZap(Config{Environment: EnvironmentProduction, Level: "nope", OTelLibraryName: "test"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "warn", want: LevelWarn},
		{input: "warning", want: LevelWarn},
		{input: "error", want: LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, "unknown", got.String())
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestOrNone(t *testing.T) {
	assert.IsType(t, NoneLogger{}, OrNone(nil))

	logger := NoneLogger{}
	assert.Equal(t, logger, OrNone(logger))
}
