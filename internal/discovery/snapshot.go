package discovery

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/plugkit/internal/container"
)

// Snapshot is a diagnostic summary of a finished discovery pass.
type Snapshot struct {
	Session     string
	Enabled     []ContainerInfo
	Disabled    []DisabledInfo
	Extensions  []string
	EntryPoints []string
	Plugins     []PluginInfo
}

// ContainerInfo describes one container.
type ContainerInfo struct {
	Identity string
	Name     string
	Version  string
	Location string
	Kind     string
}

// DisabledInfo describes one disabled container.
type DisabledInfo struct {
	ContainerInfo
	Reason  string
	Missing []string
	Error   string
}

// PluginInfo describes one plugin record.
type PluginInfo struct {
	Type      string
	Container string
}

// Snapshot returns a summary of the registry.
func (f *Finalized) Snapshot() Snapshot {
	s := Snapshot{Session: f.r.session.String()}

	for _, c := range f.Enabled() {
		s.Enabled = append(s.Enabled, containerInfo(c))
	}
	for _, d := range f.Disabled() {
		info := DisabledInfo{
			ContainerInfo: containerInfo(d.Container),
			Reason:        d.Reason.String(),
		}
		info.Missing = append(info.Missing, d.Container.MissingDependencies()...)
		info.Missing = append(info.Missing, d.Container.MissingCapabilities()...)
		if d.Err != nil {
			info.Error = d.Err.Error()
		}
		s.Disabled = append(s.Disabled, info)
	}
	for _, c := range f.Extensions() {
		s.Extensions = append(s.Extensions, c.Identity())
	}
	for _, ep := range f.EntryPoints() {
		s.EntryPoints = append(s.EntryPoints, ep.TypeName)
	}
	for _, rec := range f.r.records {
		s.Plugins = append(s.Plugins, PluginInfo{
			Type:      rec.Type.Name(),
			Container: f.r.container(rec.Container).Identity(),
		})
	}
	return s
}

// WriteTo writes a human-readable rendering of the snapshot.
func (s Snapshot) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s\n", s.Session)

	fmt.Fprintf(&b, "enabled (%d):\n", len(s.Enabled))
	for _, c := range s.Enabled {
		fmt.Fprintf(&b, "  %s %s [%s] %s\n", c.Name, c.Version, c.Kind, c.Location)
	}

	fmt.Fprintf(&b, "disabled (%d):\n", len(s.Disabled))
	for _, d := range s.Disabled {
		fmt.Fprintf(&b, "  %s: %s", d.Name, d.Reason)
		if len(d.Missing) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(d.Missing, ", "))
		}
		b.WriteString("\n")
	}

	if len(s.Extensions) > 0 {
		fmt.Fprintf(&b, "extensions: %s\n", strings.Join(s.Extensions, ", "))
	}

	fmt.Fprintf(&b, "plugins (%d):\n", len(s.Plugins))
	for _, p := range s.Plugins {
		fmt.Fprintf(&b, "  %s from %s\n", p.Type, p.Container)
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func containerInfo(c *container.Container) ContainerInfo {
	return ContainerInfo{
		Identity: c.Identity(),
		Name:     c.Name(),
		Version:  c.Version(),
		Location: c.Location(),
		Kind:     c.Kind().String(),
	}
}
