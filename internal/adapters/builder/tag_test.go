package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// writeTree materializes files into dir; keys are slash paths, values contents.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func sampleTree() map[string]string {
	return map[string]string{
		"api/app.py":       "import streamlit as st\n\nst.title(\"Pixel Art\")\n",
		"requirements.txt": "streamlit\npillow\nnumpy\n",
	}
}

func TestImageTagDeterministic(t *testing.T) {
	t.Parallel()

	app := domain.App{Name: "tilecraft", Source: "/srv/tilecraft"}
	app.Normalize()

	first := t.TempDir()
	second := t.TempDir()
	writeTree(t, first, sampleTree())
	writeTree(t, second, sampleTree())

	tagA, treeA, err := ImageTag(app, first)
	if err != nil {
		t.Fatalf("ImageTag: %v", err)
	}
	tagB, treeB, err := ImageTag(app, second)
	if err != nil {
		t.Fatalf("ImageTag: %v", err)
	}

	if tagA != tagB {
		t.Errorf("same inputs produced different tags: %s vs %s", tagA, tagB)
	}
	if treeA != treeB {
		t.Errorf("same trees produced different digests: %s vs %s", treeA, treeB)
	}
}

func TestImageTagShape(t *testing.T) {
	t.Parallel()

	app := domain.App{Name: "TileCraft", Source: "/srv/tilecraft"}
	app.Normalize()

	dir := t.TempDir()
	writeTree(t, dir, sampleTree())

	tag, _, err := ImageTag(app, dir)
	if err != nil {
		t.Fatalf("ImageTag: %v", err)
	}
	if !strings.HasPrefix(tag, "pixelart/tilecraft:") {
		t.Errorf("tag %q does not carry the lowercased repo name", tag)
	}
	if got := len(strings.TrimPrefix(tag, "pixelart/tilecraft:")); got != tagLength {
		t.Errorf("tag suffix length = %d, want %d", got, tagLength)
	}
}

func TestImageTagVaries(t *testing.T) {
	t.Parallel()

	base := domain.App{Name: "tilecraft", Source: "/srv/tilecraft"}
	base.Normalize()

	dir := t.TempDir()
	writeTree(t, dir, sampleTree())
	original, _, err := ImageTag(base, dir)
	if err != nil {
		t.Fatalf("ImageTag: %v", err)
	}

	t.Run("file content", func(t *testing.T) {
		changed := t.TempDir()
		tree := sampleTree()
		tree["requirements.txt"] = "streamlit\npillow\nnumpy\nrequests\n"
		writeTree(t, changed, tree)

		tag, _, err := ImageTag(base, changed)
		if err != nil {
			t.Fatalf("ImageTag: %v", err)
		}
		if tag == original {
			t.Error("changed manifest content did not change the tag")
		}
	})

	t.Run("file path", func(t *testing.T) {
		moved := t.TempDir()
		tree := map[string]string{
			"app.py":           sampleTree()["api/app.py"],
			"requirements.txt": sampleTree()["requirements.txt"],
		}
		writeTree(t, moved, tree)

		tag, _, err := ImageTag(base, moved)
		if err != nil {
			t.Fatalf("ImageTag: %v", err)
		}
		if tag == original {
			t.Error("moved entry file did not change the tag")
		}
	})

	t.Run("base image", func(t *testing.T) {
		app := base
		app.BaseImage = "python:3.11-slim"

		tag, _, err := ImageTag(app, dir)
		if err != nil {
			t.Fatalf("ImageTag: %v", err)
		}
		if tag == original {
			t.Error("different base image did not change the tag")
		}
	})

	t.Run("entry command", func(t *testing.T) {
		app := base
		app.Entry = "python api/app.py"

		tag, _, err := ImageTag(app, dir)
		if err != nil {
			t.Fatalf("ImageTag: %v", err)
		}
		if tag == original {
			t.Error("different entry command did not change the tag")
		}
	})
}

func TestDigestTreeIgnoresGitDir(t *testing.T) {
	t.Parallel()

	clean := t.TempDir()
	writeTree(t, clean, sampleTree())

	withGit := t.TempDir()
	tree := sampleTree()
	tree[".git/config"] = "[core]\n\trepositoryformatversion = 0\n"
	tree[".git/HEAD"] = "ref: refs/heads/main\n"
	writeTree(t, withGit, tree)

	a, err := digestTree(clean)
	if err != nil {
		t.Fatalf("digestTree: %v", err)
	}
	b, err := digestTree(withGit)
	if err != nil {
		t.Fatalf("digestTree: %v", err)
	}
	if a != b {
		t.Errorf(".git contents leaked into the tree digest: %s vs %s", a, b)
	}
}
