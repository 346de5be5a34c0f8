package repository

import (
	"testing"
	"time"
)

func TestSettingsCacheStaleness(t *testing.T) {
	now := fixedNow
	c := NewSettingsCache(time.Minute)
	c.now = func() time.Time { return now }

	if c.Fresh() {
		t.Fatal("empty cache must be stale")
	}

	c.Replace(map[string]map[string]string{"g1": {"max_sub_accounts": "2"}})
	if v, fresh := c.Get("g1", "max_sub_accounts"); v != "2" || !fresh {
		t.Fatalf("expected fresh value 2, got %q fresh=%v", v, fresh)
	}

	now = now.Add(2 * time.Minute)
	if _, fresh := c.Get("g1", "max_sub_accounts"); fresh {
		t.Fatal("expected stale snapshot after ttl")
	}

	c.Put("g1", "max_sub_accounts", "3")
	if v, _ := c.Get("g1", "max_sub_accounts"); v != "3" {
		t.Fatalf("expected write-through value 3, got %q", v)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 guild, got %d", c.Size())
	}
}
