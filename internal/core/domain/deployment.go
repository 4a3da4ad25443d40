package domain

import "time"

// Deployment is the tracked lifecycle record of one app: which image was
// built for it, which container is (or was) its entry process, and where in
// the phase machine it currently sits.
type Deployment struct {
	App         string    `json:"app"`
	Phase       Phase     `json:"phase"`
	ImageRef    string    `json:"image,omitempty"`        // tag of the built image
	ImageID     string    `json:"image_id,omitempty"`     // daemon-assigned image ID
	ContainerID string    `json:"container_id,omitempty"` // entry process container
	HostPort    int       `json:"host_port,omitempty"`    // published port, 0 when not running
	ExitCode    int       `json:"exit_code,omitempty"`    // meaningful in terminal phases
	BuiltAt     time.Time `json:"built_at,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Image is the build step's only artifact.
type Image struct {
	Ref     string            `json:"ref"`  // repo:tag
	ID      string            `json:"id"`   // daemon-assigned ID
	Base    string            `json:"base"` // base image the build extended
	Size    int64             `json:"size"`
	Created time.Time         `json:"created"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// ContainerEvent is a simplified container lifecycle event from the
// runtime: the entry process of an app started, stopped, or died.
type ContainerEvent struct {
	ContainerID string
	App         string // from the ownership label, may be empty
	Action      string // "start", "stop" or "die"
	ExitCode    int    // set for "die" events
	Time        time.Time
}

// Graceful exit codes: a clean exit, or death by the interrupt/termination
// signals a stop delivers. Anything else counts as a crash.
func GracefulExit(code int) bool {
	return code == 0 || code == 130 || code == 143
}
