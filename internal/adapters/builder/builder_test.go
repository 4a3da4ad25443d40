package builder

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

type fakeBuildClient struct {
	buildErr   error
	stream     string
	inspect    types.ImageInspect
	inspectErr error

	buildCalls int
	options    types.ImageBuildOptions
	context    []byte
}

func (f *fakeBuildClient) ImageBuild(_ context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.buildCalls++
	f.options = options
	data, err := io.ReadAll(buildContext)
	if err != nil {
		return types.ImageBuildResponse{}, err
	}
	f.context = data
	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func (f *fakeBuildClient) ImageInspectWithRaw(_ context.Context, _ string) (types.ImageInspect, []byte, error) {
	if f.inspectErr != nil {
		return types.ImageInspect{}, nil, f.inspectErr
	}
	return f.inspect, nil, nil
}

func newTestAdapter(t *testing.T, cli buildClient) *Adapter {
	t.Helper()
	return &Adapter{cli: cli, workdir: t.TempDir(), logger: zerolog.Nop()}
}

func TestBuildImagePreflightFailures(t *testing.T) {
	t.Parallel()

	missingSource := filepath.Join(t.TempDir(), "absent")
	noManifest := t.TempDir()
	writeTree(t, noManifest, map[string]string{
		"api/app.py": "import streamlit as st\n",
	})

	tests := []struct {
		name string
		app  domain.App
		step string
	}{
		{
			name: "invalid app name",
			app:  domain.App{Name: "bad name", Source: "/srv/x"},
			step: "validate app",
		},
		{
			name: "unreadable source",
			app:  domain.App{Name: "ghost", Source: missingSource},
			step: "resolve source",
		},
		{
			name: "missing manifest",
			app:  domain.App{Name: "nodeps", Source: noManifest},
			step: "resolve manifest",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cli := &fakeBuildClient{}
			a := newTestAdapter(t, cli)

			_, err := a.BuildImage(context.Background(), tt.app)
			if !errors.Is(err, domain.ErrBuild) {
				t.Fatalf("err = %v, want ErrBuild", err)
			}
			var be *domain.BuildError
			if !errors.As(err, &be) {
				t.Fatalf("err %v is not a *BuildError", err)
			}
			if be.Step != tt.step {
				t.Errorf("Step = %q, want %q", be.Step, tt.step)
			}
			if cli.buildCalls != 0 {
				t.Errorf("daemon was contacted %d times before preflight passed", cli.buildCalls)
			}
		})
	}
}

func TestBuildImage(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	tree := sampleTree()
	tree[".git/config"] = "[core]\n"
	writeTree(t, src, tree)

	cli := &fakeBuildClient{
		stream: `{"stream":"Step 1/6 : FROM python:3.12-slim\n"}
{"stream":"Successfully built deadbeef\n"}
`,
		inspect: types.ImageInspect{
			ID:      "sha256:deadbeef",
			Size:    123456789,
			Created: "2026-08-25T12:00:00.000000000Z",
			Config:  &container.Config{Labels: map[string]string{domain.LabelApp: "tilecraft"}},
		},
	}
	a := newTestAdapter(t, cli)

	app := domain.App{Name: "tilecraft", Source: src}
	img, err := a.BuildImage(context.Background(), app)
	if err != nil {
		t.Fatalf("BuildImage: %v", err)
	}

	if !strings.HasPrefix(img.Ref, "pixelart/tilecraft:") {
		t.Errorf("Ref = %q, want pixelart/tilecraft:<digest>", img.Ref)
	}
	if img.ID != "sha256:deadbeef" {
		t.Errorf("ID = %q", img.ID)
	}
	if img.Base != domain.DefaultBaseImage {
		t.Errorf("Base = %q, want %q", img.Base, domain.DefaultBaseImage)
	}
	if img.Created.IsZero() {
		t.Error("Created was not parsed")
	}

	if got := cli.options.Tags; len(got) != 1 || got[0] != img.Ref {
		t.Errorf("build Tags = %v, want [%s]", got, img.Ref)
	}
	if cli.options.Dockerfile != dockerfileName {
		t.Errorf("build Dockerfile = %q", cli.options.Dockerfile)
	}
	if !cli.options.Remove {
		t.Error("intermediate containers are not removed")
	}
	if got := cli.options.Labels[domain.LabelManaged]; got != "true" {
		t.Errorf("managed label = %q", got)
	}
	if got := cli.options.Labels[domain.LabelApp]; got != "tilecraft" {
		t.Errorf("app label = %q", got)
	}

	names := tarEntries(t, cli.context)
	for _, want := range []string{"Dockerfile", "requirements.txt", "api/app.py"} {
		if !names[want] {
			t.Errorf("build context is missing %s (has %v)", want, names)
		}
	}
	if names[".git/config"] {
		t.Error("build context leaked .git contents")
	}
}

func TestBuildImageDaemonFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cli     *fakeBuildClient
		step    string
		wantMsg string
	}{
		{
			name: "error frame in stream",
			cli: &fakeBuildClient{
				stream: `{"stream":"Step 4/6 : RUN pip install --no-cache-dir -r requirements.txt\n"}
{"errorDetail":{"code":1,"message":"executor failed running pip install: exit code 1"},"error":"executor failed running pip install: exit code 1"}
`,
			},
			step:    "image build",
			wantMsg: "executor failed running pip install",
		},
		{
			name: "build request rejected",
			cli:  &fakeBuildClient{buildErr: errors.New("no such image: python:3.99-slim")},
			step: "image build",
		},
		{
			name: "inspect after build fails",
			cli: &fakeBuildClient{
				stream:     `{"stream":"Successfully built deadbeef\n"}` + "\n",
				inspectErr: errors.New("no such image"),
			},
			step: "inspect image",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := t.TempDir()
			writeTree(t, src, sampleTree())
			a := newTestAdapter(t, tt.cli)

			_, err := a.BuildImage(context.Background(), domain.App{Name: "tilecraft", Source: src})
			if !errors.Is(err, domain.ErrBuild) {
				t.Fatalf("err = %v, want ErrBuild", err)
			}
			var be *domain.BuildError
			if !errors.As(err, &be) {
				t.Fatalf("err %v is not a *BuildError", err)
			}
			if be.Step != tt.step {
				t.Errorf("Step = %q, want %q", be.Step, tt.step)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not surface the daemon message %q", err, tt.wantMsg)
			}
		})
	}
}

// tarEntries reads an uncompressed tar and reports the contained names.
func tarEntries(t *testing.T, data []byte) map[string]bool {
	t.Helper()
	names := make(map[string]bool)
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("reading build context tar: %v", err)
		}
		names[strings.TrimSuffix(hdr.Name, "/")] = true
	}
	return names
}
