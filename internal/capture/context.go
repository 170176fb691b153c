package capture

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

type Level string

const (
	LevelLog   Level = "log"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a console method name to a Level, defaulting to LevelLog
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	case "warning":
		return LevelWarn
	}
	return LevelLog
}

// Entry is one captured console line or network failure. Network entries
// carry the request URL and the response status, 0 when the request never
// completed.
type Entry struct {
	Time    time.Time `json:"time" yaml:"time"`
	Level   Level     `json:"level,omitempty" yaml:"level,omitempty"`
	Message string    `json:"message" yaml:"message"`
	URL     string    `json:"url,omitempty" yaml:"url,omitempty"`
	Status  int       `json:"status,omitempty" yaml:"status,omitempty"`
}

// IsNetworkError reports whether a network entry describes a failure
func (e Entry) IsNetworkError() bool {
	return e.Status == 0 || e.Status >= 400
}

// Context collects the ambient page context of one report. It is safe for
// concurrent use.
type Context struct {
	mu          sync.Mutex
	console     *Ring[Entry]
	network     *Ring[Entry]
	environment map[string]string
	ignored     []glob.Glob
	now         func() time.Time
}

func NewContext(consoleCap, networkCap int) *Context {
	return &Context{
		console:     NewRing[Entry](consoleCap),
		network:     NewRing[Entry](networkCap),
		environment: map[string]string{},
		now:         time.Now,
	}
}

func (c *Context) stamp(e Entry) Entry {
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	return e
}

// Console records a console line
func (c *Context) Console(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Level = ParseLevel(string(e.Level))
	c.console.Push(c.stamp(e))
}

// IgnoreURLs drops network entries whose URL matches any of the glob
// patterns, such as "*://*.analytics.example/*".
func (c *Context) IgnoreURLs(patterns []string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid ignore pattern '%s': %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignored = compiled
	return nil
}

// Network records a network entry. Successful requests and ignored URLs
// are reported as not recorded.
func (c *Context) Network(e Entry) bool {
	if !e.IsNetworkError() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.ignored {
		if g.Match(e.URL) {
			return false
		}
	}
	e.Level = ""
	c.network.Push(c.stamp(e))
	return true
}

// SetEnvironment stores one metadata value such as the page URL or the user
// agent. An empty value removes the key.
func (c *Context) SetEnvironment(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" {
		delete(c.environment, key)
		return
	}
	c.environment[key] = value
}

// Snapshot is a point in time copy of a Context
type Snapshot struct {
	Console        []Entry           `json:"console"`
	Network        []Entry           `json:"network"`
	Environment    map[string]string `json:"environment"`
	DroppedConsole int               `json:"dropped_console"`
	DroppedNetwork int               `json:"dropped_network"`
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Console:        c.console.Items(),
		Network:        c.network.Items(),
		Environment:    maps.Clone(c.environment),
		DroppedConsole: c.console.Dropped(),
		DroppedNetwork: c.network.Dropped(),
	}
}

// Reset forgets everything captured so far
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.console.Reset()
	c.network.Reset()
	clear(c.environment)
}
