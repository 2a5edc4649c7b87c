package filter

import "testing"

func TestMatcher(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		path  string
		isDir bool
		want  bool
	}{
		{
			name: "literal exact match",
			spec: Spec{Literals: []string{"secrets"}},
			path: "secrets", isDir: true, want: true,
		},
		{
			name: "literal with trailing slash",
			spec: Spec{Literals: []string{"secrets/"}},
			path: "secrets", isDir: true, want: true,
		},
		{
			name: "literal does not match sibling",
			spec: Spec{Literals: []string{"secrets"}},
			path: "secrets2", isDir: true, want: false,
		},
		{
			name: "glob matches basename at depth",
			spec: Spec{Globs: []string{"*.key"}},
			path: "a/b/c.key", isDir: false, want: true,
		},
		{
			name: "glob anchored to root",
			spec: Spec{Globs: []string{"/top.txt"}},
			path: "top.txt", isDir: false, want: true,
		},
		{
			name: "anchored glob does not match nested",
			spec: Spec{Globs: []string{"/top.txt"}},
			path: "sub/top.txt", isDir: false, want: false,
		},
		{
			name: "directory-only pattern ignores files",
			spec: Spec{Globs: []string{"build/"}},
			path: "build", isDir: false, want: false,
		},
		{
			name: "directory-only pattern matches dirs",
			spec: Spec{Globs: []string{"build/"}},
			path: "build", isDir: true, want: true,
		},
		{
			name: "double-star pattern",
			spec: Spec{Globs: []string{"drafts/**"}},
			path: "drafts/2024/jan.md", isDir: false, want: true,
		},
		{
			name: "empty spec matches nothing",
			spec: Spec{},
			path: "anything", isDir: false, want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMatcher(&tt.spec)
			if got := m.excluded(tt.path, tt.isDir); got != tt.want {
				t.Errorf("excluded(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestSpec_Empty(t *testing.T) {
	if !(&Spec{}).Empty() {
		t.Error("empty spec should report Empty() = true")
	}
	if (&Spec{Literals: []string{"a"}}).Empty() {
		t.Error("spec with literals should report Empty() = false")
	}
	if (&Spec{Globs: []string{"*.a"}}).Empty() {
		t.Error("spec with globs should report Empty() = false")
	}
}
