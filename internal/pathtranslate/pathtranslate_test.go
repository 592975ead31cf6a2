package pathtranslate

import "testing"

func TestIsDirectoryPath(t *testing.T) {
	if !IsDirectoryPath("/a/b/") {
		t.Error("trailing slash should mark a directory")
	}
	if IsDirectoryPath("/a/b") {
		t.Error("no trailing slash should not mark a directory")
	}
}

func TestAsDirectory(t *testing.T) {
	if got := AsDirectory("/a/b"); got != "/a/b/" {
		t.Errorf("AsDirectory = %q, want /a/b/", got)
	}
	if got := AsDirectory("/a/b/"); got != "/a/b/" {
		t.Errorf("AsDirectory should be idempotent, got %q", got)
	}
}

func TestToKeyAndToPathRoundTrip(t *testing.T) {
	tr := New("mybucket")
	key := tr.ToKey("/dir/file.txt")
	if key != "dir/file.txt" {
		t.Errorf("ToKey = %q, want dir/file.txt", key)
	}
	if got := tr.ToPath(key); got != "/dir/file.txt" {
		t.Errorf("ToPath = %q, want /dir/file.txt", got)
	}
}

func TestToKeyPreservesDirectoryTrailingSlash(t *testing.T) {
	tr := New("mybucket")
	if got := tr.ToKey("/dir/"); got != "dir/" {
		t.Errorf("ToKey = %q, want dir/", got)
	}
}

func TestMoveSourceHeader(t *testing.T) {
	tr := New("mybucket")
	got := tr.MoveSourceHeader("/dir/file.txt")
	want := "/mybucket/dir/file.txt"
	if got != want {
		t.Errorf("MoveSourceHeader = %q, want %q", got, want)
	}
}

func TestProbeDirectory(t *testing.T) {
	cases := []struct {
		name     string
		keys     []string
		prefixes []string
		want     bool
	}{
		{"empty", nil, nil, false},
		{"has key", []string{"dir/a.txt"}, nil, true},
		{"has common prefix", nil, []string{"dir/sub/"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ProbeDirectory(c.keys, c.prefixes)
			if got.Exists != c.want {
				t.Errorf("Exists = %v, want %v", got.Exists, c.want)
			}
		})
	}
}

func TestIsMoveToMissingDirectoryQuirk(t *testing.T) {
	if !IsMoveToMissingDirectoryQuirk("/dst/", true) {
		t.Error("directory-style destination with KeyNotExist should trigger the quirk")
	}
	if IsMoveToMissingDirectoryQuirk("/dst/file.txt", true) {
		t.Error("non-directory destination should not trigger the quirk")
	}
	if IsMoveToMissingDirectoryQuirk("/dst/", false) {
		t.Error("without KeyNotExist there is no quirk to trigger")
	}
}
