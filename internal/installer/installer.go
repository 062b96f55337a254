package installer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Installer resolves a catalog or user-supplied manifest to a runnable MCP
// server, persists the install record, and answers the router's
// check_runtimes / install_server / uninstall_server / list_installed /
// get_server_status / set_server_secrets operations. Starting and stopping
// the resulting child process is the MCP manager's job: Installer only
// tracks install state, not process state, beyond recording the pid the
// manager reports back via MarkRunning/MarkStopped.
type Installer struct {
	store    *Store
	secrets  *SecretStore
	resolver *Resolver
	http     *http.Client
	logger   *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the installer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Installer) { i.logger = logger }
}

// WithHTTPClient overrides the client used to download local-binary artifacts.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) { i.http = client }
}

// New creates an Installer backed by the given home directory.
func New(homeDir string, opts ...Option) (*Installer, error) {
	store, err := NewStore(homeDir)
	if err != nil {
		return nil, err
	}
	secrets, err := NewSecretStore(homeDir)
	if err != nil {
		return nil, err
	}

	i := &Installer{
		store:    store,
		secrets:  secrets,
		resolver: NewResolver(),
		http:     http.DefaultClient,
		logger:   slog.Default().With("component", "installer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// CheckRuntimes reports which package-runner/container runtimes are
// available on this host.
func (i *Installer) CheckRuntimes() RuntimeAvailability {
	return i.resolver.CheckRuntimes()
}

// Install resolves the manifest's runtime, downloads and verifies a
// local-binary artifact if one is declared, and records the server as
// installed. It does not launch the server; the caller (router) hands the
// resolved command to the MCP manager separately.
func (i *Installer) Install(ctx context.Context, manifest harbor.ServerManifest) (*ResolvedCommand, error) {
	if manifest.ID == "" {
		return nil, fmt.Errorf("manifest id is required")
	}

	cmd, err := i.resolver.Resolve(manifest)
	if err != nil {
		return nil, fmt.Errorf("resolve runtime: %w", err)
	}

	if cmd.Kind == harbor.RuntimeLocalBinary && manifest.Runtime.ArtifactURL != "" {
		data, err := DownloadArtifact(ctx, i.http, manifest.Runtime.ArtifactURL)
		if err != nil {
			return nil, err
		}
		result := VerifyChecksum(data, manifest.Runtime.Checksum)
		if !result.Valid {
			return nil, fmt.Errorf("artifact verification failed: %w", result.Error)
		}
		i.logger.Info("artifact verified", "server", manifest.ID, "checksum", result.ComputedChecksum)
	}

	rec := harbor.MCPServerRecord{
		ID:           manifest.ID,
		Manifest:     manifest,
		InstallState: harbor.InstallInstalled,
	}
	if err := i.store.Put(rec); err != nil {
		return nil, fmt.Errorf("save installed server record: %w", err)
	}

	i.logger.Info("server installed", "id", manifest.ID, "runtime", cmd.Kind)
	return cmd, nil
}

// Uninstall removes a server's install record and any stored secrets.
func (i *Installer) Uninstall(id string) error {
	if err := i.secrets.Delete(id); err != nil {
		return fmt.Errorf("delete secrets: %w", err)
	}
	if err := i.store.Remove(id); err != nil {
		return fmt.Errorf("remove installed server: %w", err)
	}
	i.logger.Info("server uninstalled", "id", id)
	return nil
}

// ListInstalled returns every installed server record.
func (i *Installer) ListInstalled() []harbor.MCPServerRecord {
	return i.store.List()
}

// GetStatus returns one server's install record.
func (i *Installer) GetStatus(id string) (harbor.MCPServerRecord, bool) {
	return i.store.Get(id)
}

// MarkRunning records that the MCP manager successfully started a server's
// child process.
func (i *Installer) MarkRunning(id string, pid int) error {
	return i.store.SetInstallState(id, harbor.InstallRunning, pid)
}

// MarkStopped records that a server's child process exited, whether by
// request or unexpectedly. The caller passes InstallFailed for an
// unexpected exit and InstallInstalled for a clean stop.
func (i *Installer) MarkStopped(id string, state harbor.InstallState) error {
	return i.store.SetInstallState(id, state, 0)
}

// SetToolsCache updates a server's cached tool summaries after a successful
// tools/list on handshake.
func (i *Installer) SetToolsCache(id string, tools []harbor.ToolSummary) error {
	return i.store.SetToolsCache(id, tools)
}

// SetServerSecrets stores the full secret key/value set for a server.
func (i *Installer) SetServerSecrets(id string, values map[string]string) error {
	return i.secrets.Set(id, values)
}

// ServerSecrets returns a server's stored secret key/value set, used when
// building its launch environment.
func (i *Installer) ServerSecrets(id string) map[string]string {
	return i.secrets.Get(id)
}

// LaunchEnv merges process env, manifest env, and user secrets into the
// final environment for a server's child process, in precedence order:
// process ∪ manifest ∪ user ∪ oauth. OAuth env is merged in afterward by the
// caller, once the OAuth broker has resolved the server's token source.
func (i *Installer) LaunchEnv(manifest harbor.ServerManifest, processEnv []string) []string {
	merged := make(map[string]string, len(manifest.Env)+4)
	for k, v := range manifest.Env {
		merged[k] = v
	}
	for k, v := range i.ServerSecrets(manifest.ID) {
		merged[k] = v
	}

	env := make([]string, 0, len(processEnv)+len(merged))
	env = append(env, processEnv...)
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}
