package builder

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// stage materializes the app's source tree under the builder's workdir and
// returns the staged path plus a cleanup func. Git sources are shallow-cloned;
// local directories are copied so the caller's tree is never mutated when the
// Dockerfile gets injected.
func (a *Adapter) stage(ctx context.Context, app domain.App) (string, func(), error) {
	if err := os.MkdirAll(a.workdir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create workspace dir: %w", err)
	}
	dir, err := os.MkdirTemp(a.workdir, app.Name+"-build-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	if app.GitSource() {
		opts := &git.CloneOptions{
			URL:          app.Source,
			Depth:        1, // Shallow clone for speed
			SingleBranch: true,
		}
		if app.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(app.Branch)
		}
		if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to clone repo: %w", err)
		}
		return dir, cleanup, nil
	}

	src, err := filepath.Abs(app.Source)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if err := copyTree(src, dir); err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}

// copyTree copies the source directory into dst, preserving file modes and
// symlinks and skipping .git. Non-regular entries (sockets, devices) have no
// place in a build context and are dropped.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}
	if strings.HasPrefix(dst+string(filepath.Separator), src+string(filepath.Separator)) {
		return fmt.Errorf("staging dir %s is inside the source tree", dst)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == git.GitDirName {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
