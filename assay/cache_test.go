package assay

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// Datum LRU
// -----------------------------------------------------------------------------

func TestDatumCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newDatumCache(3)
	for i := 0; i < 3; i++ {
		c.add(DatumID(fmt.Sprintf("d%d", i)), datumEntry{resource: "R"})
	}

	// Touch d0 so d1 becomes the oldest.
	if _, ok := c.get("d0"); !ok {
		t.Fatal("d0 should be resident")
	}
	c.add("d3", datumEntry{resource: "R"})

	if c.contains("d1") {
		t.Error("d1 should have been evicted")
	}
	for _, id := range []DatumID{"d0", "d2", "d3"} {
		if !c.contains(id) {
			t.Errorf("%s should be resident", id)
		}
	}
	if c.len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.len())
	}
}

func TestDatumCache_AddExistingRefreshesValue(t *testing.T) {
	c := newDatumCache(2)
	c.add("d0", datumEntry{resource: "R1"})
	c.add("d0", datumEntry{resource: "R2"})

	entry, ok := c.get("d0")
	if !ok || entry.resource != "R2" {
		t.Errorf("expected refreshed entry R2, got (%v, %v)", entry.resource, ok)
	}
	if c.len() != 1 {
		t.Errorf("re-adding must not duplicate: %d entries", c.len())
	}
}

func TestDatumCache_ContainsDoesNotRefreshRecency(t *testing.T) {
	c := newDatumCache(2)
	c.add("d0", datumEntry{})
	c.add("d1", datumEntry{})

	// contains must not rescue d0 from eviction.
	_ = c.contains("d0")
	c.add("d2", datumEntry{})

	if c.contains("d0") {
		t.Error("d0 should have been evicted despite the contains check")
	}
}

// -----------------------------------------------------------------------------
// Resource read-through cache
// -----------------------------------------------------------------------------

func TestResourceCache_LoadsOnceAndCaches(t *testing.T) {
	loads := 0
	c := newResourceCache(func(_ context.Context, id ResourceID) (*ResourceRecord, error) {
		loads++
		return &ResourceRecord{ID: id, Spec: "FMT_A", Path: "/d/a"}, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec, err := c.get(ctx, "R1")
		if err != nil {
			t.Fatal(err)
		}
		if rec.Spec != "FMT_A" {
			t.Errorf("wrong record: %+v", rec)
		}
	}
	if loads != 1 {
		t.Errorf("expected a single load, got %d", loads)
	}
}

func TestResourceCache_FailuresNotCached(t *testing.T) {
	loads := 0
	c := newResourceCache(func(_ context.Context, id ResourceID) (*ResourceRecord, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("transient")
		}
		return &ResourceRecord{ID: id, Spec: "FMT_A", Path: "/d/a"}, nil
	})

	ctx := context.Background()
	if _, err := c.get(ctx, "R1"); err == nil {
		t.Fatal("expected first load to fail")
	}
	if _, err := c.get(ctx, "R1"); err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if loads != 2 {
		t.Errorf("expected 2 loads, got %d", loads)
	}
}

// -----------------------------------------------------------------------------
// Handler cache
// -----------------------------------------------------------------------------

func TestHandlerCache_InvalidateByType(t *testing.T) {
	c := newHandlerCache()
	a1 := &fakeHandler{}
	a2 := &fakeHandler{}
	b := &fakeHandler{}
	c.put(handlerKey{resource: "R1", handlerType: "A"}, a1)
	c.put(handlerKey{resource: "R2", handlerType: "A"}, a2)
	c.put(handlerKey{resource: "R1", handlerType: "B"}, b)

	closed, err := c.invalidate("A")
	if err != nil {
		t.Fatalf("invalidate returned error: %v", err)
	}
	if closed != 2 {
		t.Errorf("expected 2 invalidated entries, got %d", closed)
	}
	if a1.closes.Load() != 1 || a2.closes.Load() != 1 {
		t.Error("type-A handlers should be closed")
	}
	if b.closes.Load() != 0 {
		t.Error("type-B handler should remain live")
	}
	if c.len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", c.len())
	}
}
