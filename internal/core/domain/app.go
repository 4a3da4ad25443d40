package domain

import (
	"fmt"
	"path"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Defaults mirror the application this repository ships: a Streamlit app
// with its entry point under api/ and a pip requirements manifest.
const (
	DefaultBaseImage = "python:3.12-slim"
	DefaultManifest  = "requirements.txt"
	DefaultEntryFile = "api/app.py"
	DefaultPort      = 8501

	// WorkDir is the fixed path the source tree occupies inside the image.
	WorkDir = "/app"
)

// App describes one deployable application: where its source lives and how
// its image is built and started.
type App struct {
	Name      string `json:"name"`
	Source    string `json:"source"`               // local directory or git URL
	Branch    string `json:"branch,omitempty"`     // git branch, empty for default
	BaseImage string `json:"base_image,omitempty"` // build-time base, pinned
	Manifest  string `json:"manifest,omitempty"`   // dependency manifest filename
	Entry     string `json:"entry,omitempty"`      // entry command line
	EntryFile string `json:"entry_file,omitempty"` // file checked before launch
	Port      int    `json:"port,omitempty"`       // port the entry process binds
	HostPort  int    `json:"host_port,omitempty"`  // published host port, 0 for ephemeral
}

// Normalize fills unset fields with their defaults. An app with a custom
// entry command and no entry file keeps the file empty, which skips the
// pre-launch presence check.
func (a *App) Normalize() {
	if a.BaseImage == "" {
		a.BaseImage = DefaultBaseImage
	}
	if a.Manifest == "" {
		a.Manifest = DefaultManifest
	}
	if a.Entry == "" {
		if a.EntryFile == "" {
			a.EntryFile = DefaultEntryFile
		}
		a.Entry = "streamlit run " + a.EntryFile
	}
	if a.Port == 0 {
		a.Port = DefaultPort
	}
}

// Validate reports whether the app can be built and run at all. Field
// defaults are applied by Normalize before validation.
func (a *App) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if strings.ContainsAny(a.Name, " /\\:") {
		return fmt.Errorf("app name %q contains invalid characters", a.Name)
	}
	if a.Source == "" {
		return fmt.Errorf("app %s: source is required", a.Name)
	}
	if a.Port < 0 || a.Port > 65535 {
		return fmt.Errorf("app %s: port %d out of range", a.Name, a.Port)
	}
	if a.HostPort < 0 || a.HostPort > 65535 {
		return fmt.Errorf("app %s: host port %d out of range", a.Name, a.HostPort)
	}
	if _, err := a.EntryArgv(); err != nil {
		return err
	}
	return nil
}

// EntryArgv splits the entry command line into exec form the way a shell
// would, so quoted arguments survive. The result is what the image runs as
// PID 1; no shell wrapper is involved.
func (a *App) EntryArgv() ([]string, error) {
	argv, err := shell.Fields(a.Entry, nil)
	if err != nil {
		return nil, fmt.Errorf("app %s: cannot parse entry command %q: %w", a.Name, a.Entry, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("app %s: entry command is empty", a.Name)
	}
	return argv, nil
}

// EntryFilePath is the absolute path of the entry file inside the image,
// or "" when no entry file is configured.
func (a *App) EntryFilePath() string {
	if a.EntryFile == "" {
		return ""
	}
	return path.Join(WorkDir, a.EntryFile)
}

// GitSource reports whether the source is a git URL rather than a local
// directory.
func (a *App) GitSource() bool {
	return strings.HasPrefix(a.Source, "http://") ||
		strings.HasPrefix(a.Source, "https://") ||
		strings.HasPrefix(a.Source, "git@") ||
		strings.HasPrefix(a.Source, "ssh://")
}
