package domain

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b.txt", "a/b.txt"},
		{`a\b\c.txt`, "a/b/c.txt"},
		{"./a/b", "a/b"},
		{"/a/b/", "a/b"},
		{".", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b/c.txt", "a/b"},
		{"a/b", "a"},
		{"a", ""},
		{`a\b`, "a"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParentPath(tt.in); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseNameJoinDepth(t *testing.T) {
	if got := BaseName("a/b/c.txt"); got != "c.txt" {
		t.Errorf("BaseName = %q", got)
	}
	if got := BaseName("top"); got != "top" {
		t.Errorf("BaseName = %q", got)
	}
	if got := JoinPath("", "x"); got != "x" {
		t.Errorf("JoinPath root = %q", got)
	}
	if got := JoinPath("a/b", "x"); got != "a/b/x" {
		t.Errorf("JoinPath = %q", got)
	}
	if Depth("a") != 0 || Depth("a/b/c") != 2 || Depth("") != 0 {
		t.Error("Depth returned unexpected values")
	}
}
