package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called)
}

func TestComponent_PrefixesAndTracksSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	logf := Component("caches")
	logf("created %d", 3)

	// Swapping the logger after Component was called must still be honoured.
	var later []string
	SetLogger(func(format string, v ...interface{}) {
		later = append(later, fmt.Sprintf(format, v...))
	})
	logf("depleted %d", 1)

	assert.Equal(t, []string{"[caches] created 3"}, lines)
	assert.Equal(t, []string{"[caches] depleted 1"}, later)
}
