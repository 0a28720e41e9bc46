package server

import (
	"path/filepath"
	"testing"
)

func TestValidWorkDir(t *testing.T) {
	root := string(filepath.Separator)
	cases := []struct {
		in string
		ok bool
	}{
		{"", false},
		{"relative/dir", false},
		{root, true},
		{filepath.Join(root, "home", "dev", "proj"), true},
		{filepath.Join(root, "home", "dev", "proj") + string(filepath.Separator), true},
		{root + filepath.Join("home", "..", "etc"), false},
		{root + "home" + string(filepath.Separator) + "." + string(filepath.Separator) + "x", false},
	}
	for _, c := range cases {
		if got := validWorkDir(c.in); got != c.ok {
			t.Fatalf("validWorkDir(%q): got %v want %v", c.in, got, c.ok)
		}
	}
}
