package spans

import (
	"errors"
	"testing"

	"github.com/tOgg1/loom/internal/models"
)

func TestCreateBounds(t *testing.T) {
	tests := []struct {
		name    string
		bufLen  int
		start   int
		end     int
		wantErr error
	}{
		{name: "within bounds", bufLen: 10, start: 2, end: 5},
		{name: "full buffer", bufLen: 10, start: 0, end: 10},
		{name: "empty range", bufLen: 10, start: 4, end: 4, wantErr: ErrRangeEmpty},
		{name: "inverted range", bufLen: 10, start: 5, end: 3, wantErr: ErrRangeEmpty},
		{name: "negative start", bufLen: 10, start: -1, end: 3, wantErr: ErrRangeOutOfBounds},
		{name: "end past buffer", bufLen: 10, start: 8, end: 11, wantErr: ErrRangeOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewIndex(tt.bufLen)
			id, err := ix.Create(tt.start, tt.end, models.PartKindFileReference)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				if id != InvalidMarker {
					t.Fatalf("Create() returned id %v on error", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			if id == InvalidMarker {
				t.Fatal("Create() returned InvalidMarker without error")
			}
		})
	}
}

func TestCollisionAllowedAtCreation(t *testing.T) {
	ix := NewIndex(20)
	first, err := ix.Create(3, 8, models.PartKindTextExpansion)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	second, err := ix.Create(3, 8, models.PartKindTextExpansion)
	if err != nil {
		t.Fatalf("colliding Create() must not be rejected, got error: %v", err)
	}
	if first == second {
		t.Fatal("colliding markers must get distinct IDs")
	}
	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}
}

func TestRemoveInvalidatesID(t *testing.T) {
	ix := NewIndex(10)
	id, err := ix.Create(0, 4, models.PartKindAgentMention)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	ix.Remove(id)
	if _, ok := ix.Get(id); ok {
		t.Fatal("Get() found marker after Remove()")
	}

	// Slot reuse must not resurrect the stale ID.
	fresh, err := ix.Create(1, 2, models.PartKindAgentMention)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if fresh == id {
		t.Fatal("reused slot produced an identical MarkerID")
	}
	if _, ok := ix.Get(id); ok {
		t.Fatal("stale ID resolved to a reused slot")
	}
}

func TestSetExtentAndLive(t *testing.T) {
	ix := NewIndex(30)
	a, _ := ix.Create(10, 15, models.PartKindFileReference)
	b, _ := ix.Create(0, 5, models.PartKindAgentMention)

	if err := ix.SetExtent(a, 20, 25); err != nil {
		t.Fatalf("SetExtent() error: %v", err)
	}

	live := ix.Live()
	if len(live) != 2 {
		t.Fatalf("Live() returned %d markers, want 2", len(live))
	}
	if live[0].ID != b || live[1].ID != a {
		t.Fatalf("Live() order = [%v %v], want [%v %v]", live[0].ID, live[1].ID, b, a)
	}

	if err := ix.SetExtent(a, 5, 40); !errors.Is(err, ErrRangeOutOfBounds) {
		t.Fatalf("SetExtent() out of bounds error = %v, want %v", err, ErrRangeOutOfBounds)
	}
	ix.Remove(a)
	if err := ix.SetExtent(a, 1, 2); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("SetExtent() on removed marker error = %v, want %v", err, ErrMarkerNotFound)
	}
}

func TestResolveDropsLaterDuplicates(t *testing.T) {
	ix := NewIndex(40)
	first, _ := ix.Create(5, 12, models.PartKindTextExpansion)
	later, _ := ix.Create(20, 30, models.PartKindFileReference)

	// Simulate an edit leaving both markers on the same range.
	if err := ix.SetExtent(later, 5, 12); err != nil {
		t.Fatalf("SetExtent() error: %v", err)
	}

	res := ix.Resolve()
	if len(res.Order) != 1 || res.Order[0].ID != first {
		t.Fatalf("Resolve() kept %v, want only first-created %v", res.Order, first)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != later {
		t.Fatalf("Resolve() dropped %v, want [%v]", res.Dropped, later)
	}
	if _, ok := ix.Get(later); ok {
		t.Fatal("duplicate marker still live after Resolve()")
	}
	if got := res.Index[first]; got != 0 {
		t.Fatalf("dense index for survivor = %d, want 0", got)
	}
}

func TestResolveDenseIndices(t *testing.T) {
	ix := NewIndex(100)
	a, _ := ix.Create(50, 60, models.PartKindFileReference)
	b, _ := ix.Create(0, 10, models.PartKindAgentMention)
	c, _ := ix.Create(20, 30, models.PartKindTextExpansion)

	ix.Remove(c)

	res := ix.Resolve()
	if len(res.Order) != 2 {
		t.Fatalf("Resolve() kept %d markers, want 2", len(res.Order))
	}
	if res.Index[b] != 0 || res.Index[a] != 1 {
		t.Fatalf("dense indices = %v, want b=0 a=1", res.Index)
	}
}

func TestClear(t *testing.T) {
	ix := NewIndex(10)
	id, _ := ix.Create(0, 3, models.PartKindFileReference)
	ix.Clear()
	if ix.Len() != 0 {
		t.Fatalf("Len() = %d after Clear(), want 0", ix.Len())
	}
	if _, ok := ix.Get(id); ok {
		t.Fatal("marker survived Clear()")
	}
}
