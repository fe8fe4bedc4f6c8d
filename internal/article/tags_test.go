package article

import (
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"dedup and drop empties", []string{"a", "b", "a", "", "c"}, []string{"a", "b", "c"}},
		{"order preserved", []string{"zeta", "alpha", "mid"}, []string{"zeta", "alpha", "mid"}},
		{"case sensitive", []string{"Go", "go"}, []string{"Go", "go"}},
		{"nil input", nil, []string{}},
		{"only empties", []string{"", ""}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("NormalizeTags(%v) = %v, want %v", tt.input, got, tt.expected)
			}
			// Idempotent
			if again := NormalizeTags(got); !reflect.DeepEqual(again, got) {
				t.Errorf("NormalizeTags not idempotent: %v -> %v", got, again)
			}
		})
	}
}

func TestParseTagList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"  ", []string{}},
		{"one", []string{"one"}},
		{"one, two ,three", []string{"one", "two", "three"}},
		{"a, , a, b,", []string{"a", "b"}},
		{"machine learning basics, gradient descent", []string{"machine learning basics", "gradient descent"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTagList(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseTagList(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUnionTags(t *testing.T) {
	got := UnionTags([]string{"b", "a"}, []string{"a", "c"}, nil)
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionTags = %v, want %v", got, want)
	}
}

func TestAnyTagContains(t *testing.T) {
	tags := []string{"machine learning basics", "Gradient Descent"}

	tests := []struct {
		keyword    string
		ignoreCase bool
		expected   bool
	}{
		{"learn", false, true},
		{"basic", false, true},
		{"gradient", false, false},
		{"gradient", true, true},
		{"missing", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			if got := AnyTagContains(tags, tt.keyword, tt.ignoreCase); got != tt.expected {
				t.Errorf("AnyTagContains(%q, ignoreCase=%v) = %v, want %v", tt.keyword, tt.ignoreCase, got, tt.expected)
			}
		})
	}
}
