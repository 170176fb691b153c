package annotation

import (
	"slices"
	"testing"
)

func TestSessionCache(t *testing.T) {
	var left []string
	c := newSessionCache(2, func(id string, s *LiveSession) {
		left = append(left, id)
	})
	a, b, d := &LiveSession{}, &LiveSession{}, &LiveSession{}

	c.Set("a", a)
	c.Set("b", b)
	if got, ok := c.Get("a"); !ok || got != a {
		t.Fatal("expected a to be cached")
	}
	c.Set("d", d)

	if _, ok := c.Get("b"); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be deleted")
	}
	c.Delete("missing")
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if !slices.Equal(left, []string{"b", "a"}) {
		t.Errorf("sessions leaving the cache = %v, want [b a]", left)
	}
}

func TestSessionCacheMinimumCapacity(t *testing.T) {
	c := newSessionCache(0, nil)
	c.Set("a", &LiveSession{})
	c.Set("b", &LiveSession{})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
