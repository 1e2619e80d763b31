// Package timeutil provides the clock abstraction and timezone helpers.
// Ranking code never reads the wall clock directly; it takes a Clock.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is used when configuration does not name one.
const DefaultTimezone = "America/Sao_Paulo"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in the configured location.
type SystemClock struct {
	Location *time.Location
}

// Now implements Clock.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// LoadLocation resolves a timezone name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Bucket truncates t to a multiple of size in UTC.
// Used to build cache keys that stay stable for the bucket duration.
func Bucket(t time.Time, size time.Duration) time.Time {
	if size <= 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(size)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Layout used for snapshot file names.
const FileStampLayout = "20060102T150405Z"

// FileStamp formats t in UTC for use in file names.
func FileStamp(t time.Time) string {
	return t.UTC().Format(FileStampLayout)
}

// ParseFileStamp is the inverse of FileStamp.
func ParseFileStamp(s string) (time.Time, error) {
	return time.Parse(FileStampLayout, s)
}
