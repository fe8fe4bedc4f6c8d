package article

import (
	"reflect"
	"testing"
)

func TestNewNormalizesTags(t *testing.T) {
	a := New("Intro", []string{"a", "b", "a", "", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(a.Tags, want) {
		t.Errorf("Tags = %v, want %v", a.Tags, want)
	}
	if len(a.ID) != idLength {
		t.Errorf("expected %d-char id, got %q", idLength, a.ID)
	}
}

func TestNewIDsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestAddTag(t *testing.T) {
	a := New("t", []string{"x"})

	if !a.AddTag("y") {
		t.Error("expected y to be added")
	}
	if a.AddTag("x") {
		t.Error("duplicate tag should be ignored")
	}
	if a.AddTag("") {
		t.Error("empty tag should be ignored")
	}
	want := []string{"x", "y"}
	if !reflect.DeepEqual(a.Tags, want) {
		t.Errorf("Tags = %v, want %v", a.Tags, want)
	}
}

func TestRemoveTag(t *testing.T) {
	a := New("t", []string{"x", "y", "z"})

	if !a.RemoveTag("y") {
		t.Error("expected y to be removed")
	}
	if a.RemoveTag("y") {
		t.Error("second removal should report absence")
	}
	want := []string{"x", "z"}
	if !reflect.DeepEqual(a.Tags, want) {
		t.Errorf("Tags = %v, want %v", a.Tags, want)
	}
}

func TestRemoveTagDoesNotAliasClone(t *testing.T) {
	a := New("t", []string{"x", "y", "z"})
	b := a.Clone()
	b.RemoveTag("x")
	if !reflect.DeepEqual(a.Tags, []string{"x", "y", "z"}) {
		t.Errorf("original mutated through clone: %v", a.Tags)
	}
}

func TestHasAllTags(t *testing.T) {
	a := New("t", []string{"x", "y"})

	tests := []struct {
		name string
		tags []string
		want bool
	}{
		{"empty list", nil, true},
		{"single present", []string{"x"}, true},
		{"all present", []string{"y", "x"}, true},
		{"one missing", []string{"x", "q"}, false},
		{"case differs", []string{"X"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.HasAllTags(tt.tags); got != tt.want {
				t.Errorf("HasAllTags(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	a := New("Intro to Rust Ownership", []string{"borrow checker", "lifetimes"})
	b := FromRecord(a.ToRecord())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("round trip mismatch: %+v vs %+v", a, b)
	}
}

func TestFromRecord(t *testing.T) {
	a := FromRecord(Record{Title: "no id", Tags: []string{"k", "", "k"}})
	if a.ID == "" {
		t.Error("expected generated id")
	}
	if !reflect.DeepEqual(a.Tags, []string{"k"}) {
		t.Errorf("Tags = %v", a.Tags)
	}

	empty := FromRecord(Record{ID: "abc"})
	if empty.Tags == nil || len(empty.Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", empty.Tags)
	}
	if empty.ID != "abc" {
		t.Errorf("ID = %s, want abc", empty.ID)
	}
}

func TestSetTags(t *testing.T) {
	a := New("t", []string{"old"})
	a.SetTags([]string{"n1", "n1", "n2"})
	if !reflect.DeepEqual(a.Tags, []string{"n1", "n2"}) {
		t.Errorf("Tags = %v", a.Tags)
	}
}
