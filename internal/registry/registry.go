// ABOUTME: Descriptor mapping for managed MCP servers keyed by server name.
// ABOUTME: Loads JSON or TOML mapping files and resolves named descriptors.

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Descriptor is the configuration record for one named MCP server.
// It is immutable once loaded.
type Descriptor struct {
	Type           string `json:"type" toml:"type"`
	Repository     string `json:"repository,omitempty" toml:"repository"`
	Language       string `json:"language" toml:"language"`
	Entrypoint     string `json:"entrypoint" toml:"entrypoint"`
	Description    string `json:"description,omitempty" toml:"description"`
	InstallCommand string `json:"install_command,omitempty" toml:"install_command"`
}

// Registry is a read-only mapping from server name to Descriptor.
type Registry struct {
	servers map[string]Descriptor
}

// LoadDescriptors reads a descriptor mapping file. The format is selected by
// extension: .toml is parsed as TOML, everything else as JSON.
func LoadDescriptors(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config %s: %w", path, err)
	}

	servers := make(map[string]Descriptor)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &servers); err != nil {
			return nil, fmt.Errorf("parsing server config %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, &servers); err != nil {
			return nil, fmt.Errorf("parsing server config %s: %w", path, err)
		}
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("server config %s defines no servers", path)
	}

	return &Registry{servers: servers}, nil
}

// Lookup resolves a named descriptor.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	desc, ok := r.servers[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("server %q not found in config (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return desc, nil
}

// Names returns the configured server names in unspecified order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}
