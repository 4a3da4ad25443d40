package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

func TestDockerfileDefaults(t *testing.T) {
	t.Parallel()

	app := domain.App{Name: "tilecraft", Source: "/srv/tilecraft"}
	app.Normalize()

	got, err := Dockerfile(app)
	if err != nil {
		t.Fatalf("Dockerfile: %v", err)
	}

	want := `FROM python:3.12-slim

WORKDIR /app

COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

EXPOSE 8501

CMD ["streamlit", "run", "api/app.py"]
`
	if got != want {
		t.Errorf("rendered Dockerfile mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDockerfileCustomEntry(t *testing.T) {
	t.Parallel()

	app := domain.App{
		Name:      "gateway",
		Source:    "/srv/gateway",
		BaseImage: "python:3.11-alpine",
		Entry:     "python -m http.server 9000",
		Port:      9000,
	}
	app.Normalize()

	got, err := Dockerfile(app)
	if err != nil {
		t.Fatalf("Dockerfile: %v", err)
	}

	for _, line := range []string{
		"FROM python:3.11-alpine\n",
		"EXPOSE 9000\n",
		`CMD ["python", "-m", "http.server", "9000"]` + "\n",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("Dockerfile missing %q:\n%s", line, got)
		}
	}
}

func TestDockerfileQuotesEntryArgs(t *testing.T) {
	t.Parallel()

	app := domain.App{Name: "spaced", Source: "/srv/spaced", Entry: `streamlit run "my app.py"`}
	app.Normalize()

	got, err := Dockerfile(app)
	if err != nil {
		t.Fatalf("Dockerfile: %v", err)
	}
	if !strings.Contains(got, `CMD ["streamlit", "run", "my app.py"]`) {
		t.Errorf("quoted entry argument not preserved:\n%s", got)
	}
}

func TestEnsureDockerfileKeepsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	own := "FROM scratch\nCOPY bin /bin\n"
	if err := os.WriteFile(filepath.Join(dir, dockerfileName), []byte(own), 0o644); err != nil {
		t.Fatal(err)
	}

	app := domain.App{Name: "custom", Source: dir}
	app.Normalize()
	if err := ensureDockerfile(dir, app); err != nil {
		t.Fatalf("ensureDockerfile: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, dockerfileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != own {
		t.Errorf("existing Dockerfile was overwritten:\n%s", got)
	}
}

func TestEnsureDockerfileSynthesizes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	app := domain.App{Name: "plain", Source: dir}
	app.Normalize()

	if err := ensureDockerfile(dir, app); err != nil {
		t.Fatalf("ensureDockerfile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, dockerfileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(got), "FROM python:3.12-slim\n") {
		t.Errorf("synthesized Dockerfile does not pin the base image:\n%s", got)
	}
}
