package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Increment(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 100, tracker.Current())
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	assert.Contains(t, buf.String(), "100/100 chunks")
	assert.Contains(t, buf.String(), "100.0%")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Start()
	tracker.Update(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100")
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestProgressTracker_Bounds(t *testing.T) {
	t.Run("zero total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "chunks", 0, 10)
		tracker.Start()
		tracker.Finish()
		assert.Contains(t, buf.String(), "0/0")
	})

	t.Run("capped at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "chunks", 100, 10)
		tracker.Start()
		tracker.Increment(150)
		assert.Equal(t, 100, tracker.Current())
		assert.Contains(t, buf.String(), "100/100")
	})

	t.Run("not started", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, "chunks", 100, 10)
		tracker.Increment(10)
		tracker.Finish()
		assert.Empty(t, buf.String())
		assert.Zero(t, tracker.Elapsed())
	})
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 1000, 100)
	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String(), "under the interval")

	tracker.Update(100)
	assert.NotEmpty(t, buf.String(), "at the interval")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "less than an interval since the last report")

	tracker.Update(250)
	last := strings.Split(buf.String(), "\r")
	assert.Contains(t, last[len(last)-1], "250/1000 chunks (25.0%)")
	assert.Contains(t, last[len(last)-1], "chunks/s")
}
