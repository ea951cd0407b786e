package sheets

import "testing"

func TestFormCache(t *testing.T) {
	c, err := NewFormCache(10)
	if err != nil {
		t.Fatalf("NewFormCache: %v", err)
	}

	if _, ok := c.Get(3); ok {
		t.Fatal("empty cache returned an object")
	}
	c.Add(3, FormObject{TemplateID: 7, Width: 595, Height: 842})

	obj, ok := c.Get(3)
	if !ok || obj.TemplateID != 7 {
		t.Fatalf("Get(3) = %+v, %v; want the stored object", obj, ok)
	}

	hits, misses, ratio := c.Stats()
	if hits != 1 || misses != 1 || ratio != 0.5 {
		t.Errorf("Stats() = %d, %d, %v; want 1, 1, 0.5", hits, misses, ratio)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFormCacheEviction(t *testing.T) {
	c, err := NewFormCache(2)
	if err != nil {
		t.Fatalf("NewFormCache: %v", err)
	}

	var released []int
	add := func(page int) {
		c.Add(page, FormObject{
			TemplateID: page,
			Release:    func() { released = append(released, page) },
		})
	}

	add(0)
	add(1)
	add(2) // evicts page 0, the least recently used

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if len(released) != 1 || released[0] != 0 {
		t.Errorf("released = %v, want [0]", released)
	}
	if _, ok := c.Get(0); ok {
		t.Error("evicted page still cached")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("newest page missing")
	}
}

func TestFormCachePurge(t *testing.T) {
	c, err := NewFormCache(4)
	if err != nil {
		t.Fatalf("NewFormCache: %v", err)
	}

	released := 0
	for i := 0; i < 3; i++ {
		c.Add(i, FormObject{Release: func() { released++ }})
	}
	c.Purge()

	if released != 3 {
		t.Errorf("%d release hooks ran, want 3", released)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after purge", c.Len())
	}
}

func TestFormCacheRejectsZeroCapacity(t *testing.T) {
	if _, err := NewFormCache(0); err == nil {
		t.Fatal("NewFormCache(0) succeeded")
	}
}
