package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTYBuffer(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestColorDisabledHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, ColorDisabled())
}

func TestColorDisabledHonorsCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, ColorDisabled())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0B", FormatBytes(0))
	assert.Equal(t, "0B", FormatBytes(-5))
	assert.Equal(t, "512B", FormatBytes(512))
	assert.Equal(t, "4KiB", FormatBytes(4096))
	assert.Equal(t, "1MiB", FormatBytes(1024*1024))
}

func TestNewStylesNoColorRendersPlain(t *testing.T) {
	st := NewStyles(true)
	assert.Equal(t, "hello", st.Title.Render("hello"))
	assert.Equal(t, "hello", st.Bad.Render("hello"))
}
