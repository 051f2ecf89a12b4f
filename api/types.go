// Package api defines the JSON request/response shapes of the AdminAPI
// HTTP surface (spec.md §6).
package api

// Deployment is the wire shape of a catalog.Deployment row, identified by
// its database id rather than nested stacks (stacks are managed through
// their own endpoints).
type Deployment struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Client      string `json:"client"`
	Environment string `json:"environment"`
	Solution    string `json:"solution"`
}

// Stack is the wire shape of a catalog.Stack row.
type Stack struct {
	ID            int64  `json:"id,omitempty"`
	DeploymentID  int64  `json:"deployment_id"`
	StackName     string `json:"stack_name"`
	Filename      string `json:"filename"`
	HomeDirectory string `json:"home_directory"`
}

// Container is the wire shape of a catalog.Container row.
type Container struct {
	ID             int64    `json:"id,omitempty"`
	StackID        int64    `json:"stack_id"`
	ServiceName    string   `json:"service_name"`
	ContainerName  string   `json:"container_name"`
	Image          string   `json:"image"`
	Restart        string   `json:"restart"`
	User           string   `json:"user,omitempty"`
	StdinOpen      bool     `json:"stdin_open,omitempty"`
	TTY            bool     `json:"tty,omitempty"`
	Command        string   `json:"command,omitempty"`
	WorkingDir     string   `json:"working_dir,omitempty"`
	PullPolicy     string   `json:"pull_policy,omitempty"`
	Ports          []string `json:"ports,omitempty"`
	Volumes        []string `json:"volumes,omitempty"`
	Environment    []string `json:"environment,omitempty"`
	MemReservation string   `json:"mem_reservation,omitempty"`
	MemLimit       string   `json:"mem_limit,omitempty"`
	OOMKillDisable bool     `json:"oom_kill_disable,omitempty"`
	Privileged     bool     `json:"privileged,omitempty"`
}

// ErrorResponse is the JSON body returned alongside any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
