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
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not call the previous logger")
}

func TestWarningsCollectAndLog(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var logged []string
	SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	w := NewWarnings("Walk03")
	w.Addf("trim", "frames %v are incomplete", []int{120, 121})
	w.Addf("plates", "stride %s invalidated", "Left_2")

	items := w.Items()
	assert.Len(t, items, 2)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, Warning{Trial: "Walk03", Stage: "trim", Message: "frames [120 121] are incomplete"}, items[0])
	assert.Equal(t, "Walk03 [plates] stride Left_2 invalidated", items[1].String())
	assert.Len(t, logged, 2)

	items[0].Message = "mutated"
	assert.NotEqual(t, "mutated", w.Items()[0].Message)
}

func TestNilWarningsOnlyLogs(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	count := 0
	SetLogger(func(string, ...interface{}) { count++ })

	var w *Warnings
	w.Addf("grf", "interference")
	assert.Equal(t, 1, count)
	assert.Nil(t, w.Items())
	assert.Equal(t, 0, w.Len())
}
