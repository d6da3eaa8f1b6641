package peers

import (
	"reflect"
	"testing"
)

func TestAddExcludesSelf(t *testing.T) {
	p := NewPeerSet("http://127.0.0.1:8000", nil)

	if p.Add("http://127.0.0.1:8000") {
		t.Fatalf("adding self should be refused")
	}
	if p.Add("") {
		t.Fatalf("adding an empty address should be refused")
	}

	if !p.Add("http://127.0.0.1:8001") {
		t.Fatalf("adding a new peer should succeed")
	}
	if p.Add("http://127.0.0.1:8001") {
		t.Fatalf("adding a duplicate should report no change")
	}

	if p.Len() != 1 {
		t.Fatalf("peer set length is %d, want 1", p.Len())
	}
}

func TestMerge(t *testing.T) {
	p := NewPeerSet("http://127.0.0.1:8000", []string{"http://127.0.0.1:8001"})

	changed := p.Merge([]string{
		"http://127.0.0.1:8001",
		"http://127.0.0.1:8002",
		"http://127.0.0.1:8000", // self
	})

	if !changed {
		t.Fatalf("merge with a new address should report a change")
	}

	want := []string{"http://127.0.0.1:8001", "http://127.0.0.1:8002"}
	if !reflect.DeepEqual(p.ToSlice(), want) {
		t.Fatalf("peer set is %v, want %v", p.ToSlice(), want)
	}

	if p.Merge(want) {
		t.Fatalf("merge with only known addresses should report no change")
	}
}

func TestRemove(t *testing.T) {
	p := NewPeerSet("http://127.0.0.1:8000", []string{"http://127.0.0.1:8001"})

	if !p.Remove("http://127.0.0.1:8001") {
		t.Fatalf("removing a member should succeed")
	}
	if p.Remove("http://127.0.0.1:8001") {
		t.Fatalf("removing a non-member should report false")
	}
	if p.Contains("http://127.0.0.1:8001") {
		t.Fatalf("removed peer should not be a member")
	}
}
