package compose

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/theinhumaneme/hikari/internal/catalog"
)

// file mirrors the docker-compose.yaml top-level structure that a Stack's
// ComposeSpec materializes to.
type file struct {
	Services map[string]service `yaml:"services"`
}

// service mirrors a single docker-compose service definition, populated
// field-by-field from a catalog.Container.
type service struct {
	ContainerName  string   `yaml:"container_name"`
	Image          string   `yaml:"image"`
	Restart        string   `yaml:"restart"`
	User           string   `yaml:"user,omitempty"`
	StdinOpen      bool     `yaml:"stdin_open,omitempty"`
	TTY            bool     `yaml:"tty,omitempty"`
	Command        string   `yaml:"command,omitempty"`
	WorkingDir     string   `yaml:"working_dir,omitempty"`
	PullPolicy     string   `yaml:"pull_policy,omitempty"`
	Ports          []string `yaml:"ports,omitempty"`
	Volumes        []string `yaml:"volumes,omitempty"`
	Environment    []string `yaml:"environment,omitempty"`
	MemReservation string   `yaml:"mem_reservation,omitempty"`
	MemLimit       string   `yaml:"mem_limit,omitempty"`
	OOMKillDisable bool     `yaml:"oom_kill_disable,omitempty"`
	Privileged     bool     `yaml:"privileged,omitempty"`
}

func toFile(spec catalog.ComposeSpec) file {
	f := file{Services: make(map[string]service, len(spec.Services))}
	for name, c := range spec.Services {
		f.Services[name] = service{
			ContainerName:  c.ContainerName,
			Image:          c.Image,
			Restart:        c.Restart,
			User:           c.User,
			StdinOpen:      c.StdinOpen,
			TTY:            c.TTY,
			Command:        c.Command,
			WorkingDir:     c.WorkingDir,
			PullPolicy:     c.PullPolicy,
			Ports:          c.Ports,
			Volumes:        c.Volumes,
			Environment:    c.Environment,
			MemReservation: c.MemReservation,
			MemLimit:       c.MemLimit,
			OOMKillDisable: c.OOMKillDisable,
			Privileged:     c.Privileged,
		}
	}
	return f
}

// writeComposeFile serializes spec to YAML and overwrites path.
func writeComposeFile(path string, spec catalog.ComposeSpec) error {
	data, err := yaml.Marshal(toFile(spec))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
