package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var quiet bytes.Buffer
	l := New(&quiet, false)
	l.Debug().Msg("hidden")
	l.Warn().Msg("shown")
	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "shown")

	var loud bytes.Buffer
	l = New(&loud, true)
	l.Debug().Msg("visible")
	assert.Contains(t, loud.String(), "visible")
}

func TestServerIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Server(&buf, false)
	l.Info().Str("addr", ":10000").Msg("listening")
	assert.Contains(t, buf.String(), `"component":"backend"`)
	assert.Contains(t, buf.String(), `"addr":":10000"`)
}
