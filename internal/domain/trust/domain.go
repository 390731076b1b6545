package trust

import (
	"context"
	"strings"
	"time"
)

type Level string

const (
	LevelUnknown   Level = "unknown"
	LevelTrusted   Level = "trusted"
	LevelUntrusted Level = "untrusted"
	LevelTimeout   Level = "timeout"
)

// Probe statuses that are not trust levels.
const (
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// Epoch is the vtime of a node that was never verified.
var Epoch = time.Unix(0, 0).UTC()

type Entry struct {
	Host  string    `json:"host"`
	Level Level     `json:"trust_lvl"`
	VTime time.Time `json:"vtime"`
}

// Stale reports whether the entry was last verified before now-maxAge.
func (e Entry) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.VTime) > maxAge
}

// Criteria is what a check asks an adapter to verify about a host.
type Criteria struct {
	Check    string
	Server   string
	Port     int
	Required Level
}

// Adapter judges whether a host satisfies a trust criterion. Failures are
// reported through the status string, never by panicking.
type Adapter interface {
	IsTrusted(ctx context.Context, host string, c Criteria) (bool, string)
}

type AdapterFunc func(ctx context.Context, host string, c Criteria) (bool, string)

func (f AdapterFunc) IsTrusted(ctx context.Context, host string, c Criteria) (bool, string) {
	return f(ctx, host, c)
}

// LevelFromOutcome maps an adapter reply to the level stored in the pool.
func LevelFromOutcome(ok bool, status string) Level {
	if ok {
		return LevelTrusted
	}
	switch Level(strings.ToLower(strings.TrimSpace(status))) {
	case LevelUnknown:
		return LevelUnknown
	case LevelTimeout:
		return LevelTimeout
	}
	if strings.EqualFold(status, StatusError) {
		return LevelUnknown
	}
	return LevelUntrusted
}
