package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks sync statistics using lock-free atomic counters.
type Collector struct {
	listings    atomic.Int64
	uploaded    atomic.Int64
	downloaded  atomic.Int64
	deleted     atomic.Int64
	dirsCreated atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
	bytesUp     atomic.Int64
	bytesDown   atomic.Int64
	tasksTotal  atomic.Int64
	startTime   time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Listings    int64
	Uploaded    int64
	Downloaded  int64
	Deleted     int64
	DirsCreated int64
	Skipped     int64
	Failed      int64
	BytesUp     int64
	BytesDown   int64
	TasksTotal  int64
	Elapsed     time.Duration
}

func (c *Collector) AddListings(n int64)    { c.listings.Add(n) }
func (c *Collector) AddUploaded(n int64)    { c.uploaded.Add(n) }
func (c *Collector) AddDownloaded(n int64)  { c.downloaded.Add(n) }
func (c *Collector) AddDeleted(n int64)     { c.deleted.Add(n) }
func (c *Collector) AddDirsCreated(n int64) { c.dirsCreated.Add(n) }
func (c *Collector) AddSkipped(n int64)     { c.skipped.Add(n) }
func (c *Collector) AddFailed(n int64)      { c.failed.Add(n) }
func (c *Collector) AddBytesUp(n int64)     { c.bytesUp.Add(n) }
func (c *Collector) AddBytesDown(n int64)   { c.bytesDown.Add(n) }
func (c *Collector) AddTasksTotal(n int64)  { c.tasksTotal.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Listings:    c.listings.Load(),
		Uploaded:    c.uploaded.Load(),
		Downloaded:  c.downloaded.Load(),
		Deleted:     c.deleted.Load(),
		DirsCreated: c.dirsCreated.Load(),
		Skipped:     c.skipped.Load(),
		Failed:      c.failed.Load(),
		BytesUp:     c.bytesUp.Load(),
		BytesDown:   c.bytesDown.Load(),
		TasksTotal:  c.tasksTotal.Load(),
		Elapsed:     c.Elapsed(),
	}
}

// Done returns the number of tasks that have finished, successfully or not.
func (s Snapshot) Done() int64 {
	return s.Uploaded + s.Downloaded + s.Deleted + s.DirsCreated + s.Skipped + s.Failed
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesUp.Load() + c.bytesDown.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"listings=%d uploaded=%d downloaded=%d deleted=%d dirs=%d skipped=%d failed=%d up=%d down=%d",
		s.Listings, s.Uploaded, s.Downloaded, s.Deleted, s.DirsCreated,
		s.Skipped, s.Failed, s.BytesUp, s.BytesDown,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
