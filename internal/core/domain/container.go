package domain

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	App       string `json:"app"` // owning app, from the ownership label
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	ExitCode  int    `json:"exit_code,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	HostPort  int    `json:"host_port,omitempty"`
}
