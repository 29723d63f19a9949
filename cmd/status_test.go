//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/altgovph/procurement-cli/internal/passlog"
)

func TestFormatStatusEntries_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatStatusEntries(&buf, nil)

	output := buf.String()
	assert.Contains(t, output, "PASS")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "COUNTS")
}

func TestFormatStatusEntries(t *testing.T) {
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	entries := []passlog.Entry{
		{
			ID:          uuid.MustParse("6f1c2a8e-4b7d-4e0a-9c39-2f4d8a1b5e77"),
			Pass:        "sync:flood",
			Status:      passlog.StatusComplete,
			StartedAt:   started,
			CompletedAt: &completed,
			Counts:      map[string]int{"created": 4, "raw": 10, "failures": 0},
		},
		{
			ID:        uuid.MustParse("0b5e3f7a-1c2d-4e5f-8a9b-0c1d2e3f4a5b"),
			Pass:      "link",
			Status:    passlog.StatusFailed,
			StartedAt: started,
			Error:     "link: load existing links: " + string(bytes.Repeat([]byte("x"), 100)),
		},
	}

	var buf bytes.Buffer
	formatStatusEntries(&buf, entries)

	output := buf.String()
	assert.Contains(t, output, "6f1c2a8e")
	assert.Contains(t, output, "sync:flood")
	assert.Contains(t, output, "2025-03-01 08:00")
	assert.Contains(t, output, "1m30s")
	assert.Contains(t, output, "created=4 raw=10")
	assert.NotContains(t, output, "failures=0")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "...")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "-", formatCounts(nil))
	assert.Equal(t, "-", formatCounts(map[string]int{"failures": 0}))
	assert.Equal(t, "a=1 b=2", formatCounts(map[string]int{"b": 2, "a": 1}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
