package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

const dockerfileName = "Dockerfile"

// ensureDockerfile writes the canonical Dockerfile into the staged tree.
// A tree that ships its own Dockerfile wins; we never overwrite it.
func ensureDockerfile(dir string, app domain.App) error {
	path := filepath.Join(dir, dockerfileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	content, err := Dockerfile(app)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Dockerfile renders the build recipe for an app: pinned base image, the
// dependency manifest installed in its own layer so source edits don't bust
// the pip cache, the full tree copied in, and the entry command in exec form
// so the app runs as PID 1 and receives stop signals directly.
func Dockerfile(app domain.App) (string, error) {
	argv, err := app.EntryArgv()
	if err != nil {
		return "", err
	}
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = strconv.Quote(arg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", app.BaseImage)
	fmt.Fprintf(&b, "WORKDIR %s\n\n", domain.WorkDir)
	fmt.Fprintf(&b, "COPY %s ./\n", app.Manifest)
	fmt.Fprintf(&b, "RUN pip install --no-cache-dir -r %s\n\n", app.Manifest)
	b.WriteString("COPY . .\n\n")
	fmt.Fprintf(&b, "EXPOSE %d\n\n", app.Port)
	fmt.Fprintf(&b, "CMD [%s]\n", strings.Join(quoted, ", "))
	return b.String(), nil
}
