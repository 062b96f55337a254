package installer

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// launcher is the resolved package-runner binary for one RuntimeKind.
type launcher struct {
	kind   harbor.RuntimeKind
	binary string
	args   func(manifest harbor.ServerManifest) []string
}

var candidateLaunchers = []launcher{
	{
		kind:   harbor.RuntimeNodePackageRunner,
		binary: "npx",
		args: func(m harbor.ServerManifest) []string {
			return append([]string{"-y", m.Command}, m.Args...)
		},
	},
	{
		kind:   harbor.RuntimePythonPackageRunner,
		binary: "uvx",
		args: func(m harbor.ServerManifest) []string {
			return append([]string{m.Command}, m.Args...)
		},
	},
	{
		kind:   harbor.RuntimeContainer,
		binary: "docker",
		args: func(m harbor.ServerManifest) []string {
			return append([]string{"run", "--rm", "-i", m.Command}, m.Args...)
		},
	},
}

// RuntimeAvailability reports whether each candidate runtime's launcher
// binary is reachable on PATH. "check_runtimes" surfaces this map directly.
type RuntimeAvailability map[harbor.RuntimeKind]bool

// Resolver caches exec.LookPath results for the lifetime of the helper
// process; package-runner availability does not change while it runs.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]bool
}

// NewResolver creates a runtime resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]bool)}
}

func (r *Resolver) lookPath(binary string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ok, cached := r.cache[binary]; cached {
		return ok
	}
	_, err := exec.LookPath(binary)
	ok := err == nil
	r.cache[binary] = ok
	return ok
}

// CheckRuntimes reports availability for every candidate runtime plus
// whether the manifest's own command resolves as a local binary.
func (r *Resolver) CheckRuntimes() RuntimeAvailability {
	avail := make(RuntimeAvailability, len(candidateLaunchers)+1)
	for _, l := range candidateLaunchers {
		avail[l.kind] = r.lookPath(l.binary)
	}
	avail[harbor.RuntimeLocalBinary] = true
	return avail
}

// ResolvedCommand is the final launch command and args for a server, after
// runtime resolution. Env is left to the caller: the MCP manager merges
// process env, manifest env, user env, and OAuth env.
type ResolvedCommand struct {
	Kind harbor.RuntimeKind
	Path string
	Args []string
}

// Resolve picks the runtime kind and command line for a manifest. A
// manifest that declares runtime.hasNativeCode prefers the container
// runtime over whatever kind it otherwise declared, since native
// dependencies are unlikely to be present in the host's package-runner
// environment. An explicit runtime.kind is honored when its launcher is
// available; otherwise Resolve falls through node → python → container →
// local binary, in that order, picking the first available launcher.
func (r *Resolver) Resolve(manifest harbor.ServerManifest) (*ResolvedCommand, error) {
	preferred := manifest.Runtime.Kind
	if manifest.Runtime.HasNativeCode {
		preferred = harbor.RuntimeContainer
	}

	if preferred != "" && preferred != harbor.RuntimeLocalBinary {
		for _, l := range candidateLaunchers {
			if l.kind == preferred {
				if !r.lookPath(l.binary) {
					return nil, fmt.Errorf("runtime %s requires %q, not found on PATH", preferred, l.binary)
				}
				return &ResolvedCommand{Kind: l.kind, Path: l.binary, Args: l.args(manifest)}, nil
			}
		}
	}

	if preferred == harbor.RuntimeLocalBinary {
		return r.resolveLocalBinary(manifest)
	}

	for _, l := range candidateLaunchers {
		if r.lookPath(l.binary) {
			return &ResolvedCommand{Kind: l.kind, Path: l.binary, Args: l.args(manifest)}, nil
		}
	}

	return r.resolveLocalBinary(manifest)
}

func (r *Resolver) resolveLocalBinary(manifest harbor.ServerManifest) (*ResolvedCommand, error) {
	path, err := exec.LookPath(manifest.Command)
	if err != nil {
		return nil, fmt.Errorf("local binary %q not found: %w", manifest.Command, err)
	}
	return &ResolvedCommand{Kind: harbor.RuntimeLocalBinary, Path: path, Args: manifest.Args}, nil
}
