package registry

import (
	"sync"
	"testing"
)

func TestActiveDownloads_AddRemoveCount(t *testing.T) {
	a := NewActiveDownloads()

	a.Add("d1", "video one")
	a.Add("d2", "video two")
	if a.Count() != 2 {
		t.Fatalf("want count=2 got %d", a.Count())
	}

	a.Remove("d1")
	if a.Count() != 1 {
		t.Fatalf("want count=1 got %d", a.Count())
	}

	// unconditional release on every exit path must be safe
	a.Remove("d1")
	a.Remove("never-added")
	if a.Count() != 1 {
		t.Fatalf("want count=1 got %d", a.Count())
	}
}

func TestActiveDownloads_Update(t *testing.T) {
	a := NewActiveDownloads()
	a.Add("d1", "initial")
	a.Update("d1", "resolved title", 40)
	a.Update("missing", "ignored", 10)

	entries := a.List()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry got %d", len(entries))
	}
	if entries[0].Label != "resolved title" || entries[0].Progress != 40 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestActiveDownloads_ConcurrentAccess(t *testing.T) {
	a := NewActiveDownloads()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			a.Add(id, "x")
			a.Update(id, "y", n)
			_ = a.Count()
			a.Remove(id)
		}(i)
	}
	wg.Wait()
	if a.Count() != 0 {
		t.Fatalf("want empty registry got %d", a.Count())
	}
}
