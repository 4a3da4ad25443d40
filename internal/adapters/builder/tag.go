package builder

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/opencontainers/go-digest"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// imageRepo is the repository namespace for images we build.
const imageRepo = "pixelart"

// tagLength truncates the digest for readability, like short container IDs.
const tagLength = 12

// ImageTag derives the content-addressed tag for an app's image. The digest
// covers everything that determines the built image: base image, entry
// command, manifest name, port, and the staged tree itself. Building the
// same inputs twice yields the same tag.
func ImageTag(app domain.App, dir string) (tag string, treeDigest string, err error) {
	tree, err := digestTree(dir)
	if err != nil {
		return "", "", err
	}
	seed := strings.Join([]string{
		app.BaseImage,
		app.Entry,
		app.Manifest,
		strconv.Itoa(app.Port),
		tree.String(),
	}, "\x00")
	dgst := digest.FromString(seed)
	tag = fmt.Sprintf("%s/%s:%s", imageRepo, strings.ToLower(app.Name), dgst.Encoded()[:tagLength])
	return tag, tree.String(), nil
}

// digestTree hashes the staged tree: every regular file's path, size and
// content, every symlink's path and target, in walk order. Modes, mtimes and
// owners stay outside the digest so a fresh clone of the same revision
// digests identically.
func digestTree(dir string) (digest.Digest, error) {
	digester := digest.Canonical.Digester()
	h := digester.Hash()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		name := filepath.ToSlash(rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "link:%s\x00%s\x00", name, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "file:%s\x00%d\x00", name, info.Size())
			_, cerr := io.Copy(h, f)
			f.Close()
			if cerr != nil {
				return cerr
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return digester.Digest(), nil
}
