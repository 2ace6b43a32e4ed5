package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddListings(1)
				c.AddUploaded(1)
				c.AddDownloaded(1)
				c.AddDeleted(1)
				c.AddSkipped(1)
				c.AddFailed(1)
				c.AddBytesUp(256)
				c.AddBytesDown(128)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.Listings)
	assert.Equal(t, expected, s.Uploaded)
	assert.Equal(t, expected, s.Downloaded)
	assert.Equal(t, expected, s.Deleted)
	assert.Equal(t, expected, s.Skipped)
	assert.Equal(t, expected, s.Failed)
	assert.Equal(t, expected*256, s.BytesUp)
	assert.Equal(t, expected*128, s.BytesDown)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		Listings:    4,
		Uploaded:    8,
		Downloaded:  2,
		Deleted:     1,
		DirsCreated: 3,
		Skipped:     5,
		Failed:      1,
		BytesUp:     4096,
		BytesDown:   10,
	}
	expected := "listings=4 uploaded=8 downloaded=2 deleted=1 dirs=3 skipped=5 failed=1 up=4096 down=10"
	assert.Equal(t, expected, s.String())
}

func TestSnapshotDone(t *testing.T) {
	s := Snapshot{Uploaded: 1, Downloaded: 2, Deleted: 3, DirsCreated: 4, Skipped: 5, Failed: 6, Listings: 100}
	assert.Equal(t, int64(21), s.Done())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.startTime.IsZero())
	assert.InDelta(t, 0, c.Elapsed().Seconds(), 1)
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()

	// Simulate 5 seconds of 1000 bytes/sec, split across directions.
	for range 5 {
		c.AddBytesUp(600)
		c.AddBytesDown(400)
		c.Tick()
	}

	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
}

func TestRollingSpeedPartialWindow(t *testing.T) {
	c := NewCollector()

	c.AddBytesUp(500)
	c.Tick()
	c.AddBytesUp(500)
	c.Tick()

	// Ask for 10 but only have 2.
	assert.InDelta(t, 500.0, c.RollingSpeed(10), 0.01)
}

func TestRollingSpeedNoSamples(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0.0, c.RollingSpeed(5))
}

func TestRingWraparound(t *testing.T) {
	c := NewCollector()

	for range ringSize + 10 {
		c.AddBytesUp(10)
		c.Tick()
	}
	assert.InDelta(t, 10.0, c.RollingSpeed(ringSize), 0.01)
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	s := c.Snapshot()
	assert.Greater(t, s.Elapsed, time.Duration(0))
}
