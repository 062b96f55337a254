package router

import (
	"context"
	"os"

	"github.com/harborhq/harbor-helper/internal/installer"
	"github.com/harborhq/harbor-helper/internal/mcpmgr"
	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

type installServerPayload struct {
	Manifest harbor.ServerManifest `json:"manifest"`
}

type installServerResult struct {
	Record harbor.MCPServerRecord `json:"record"`
}

func handleInstallServer(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload installServerPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}

	cmd, err := deps.Installer.Install(ctx, payload.Manifest)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "install server", err)
	}

	rec, _ := deps.Installer.GetStatus(payload.Manifest.ID)
	registerMCPServer(deps, payload.Manifest, cmd)
	return installServerResult{Record: rec}, nil
}

func handleUninstallServer(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	_ = deps.MCP.Disconnect(payload.ID)
	deps.MCP.UnregisterServer(payload.ID)
	if err := deps.Installer.Uninstall(payload.ID); err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "uninstall server", err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleListInstalled(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	return map[string][]harbor.MCPServerRecord{"servers": deps.Installer.ListInstalled()}, nil
}

func handleStartInstalled(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}

	rec, ok := deps.Installer.GetStatus(payload.ID)
	if !ok {
		return nil, harbor.NewError(harbor.ErrHarborNotFound, "no installed server "+payload.ID)
	}

	cmd, err := deps.Installer.Install(ctx, rec.Manifest)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "resolve launch command", err)
	}
	registerMCPServer(deps, rec.Manifest, cmd)

	if err := deps.MCP.Connect(ctx, payload.ID); err != nil {
		_ = deps.Installer.MarkStopped(payload.ID, harbor.InstallFailed)
		return nil, harbor.Wrap(harbor.ErrConnectionFailed, "start server", err)
	}

	if err := deps.Installer.SetToolsCache(payload.ID, toolSummariesForServer(deps, payload.ID)); err != nil {
		deps.logger().Warn("failed to cache tool summaries", "server", payload.ID, "error", err)
	}
	if err := deps.Installer.MarkRunning(payload.ID, os.Getpid()); err != nil {
		deps.logger().Warn("failed to mark server running", "server", payload.ID, "error", err)
	}

	deps.ToolRegistry.ReplaceAll(mcpmgr.BridgeTools(deps.MCP, nil))
	return map[string]bool{"ok": true}, nil
}

func handleStopInstalled(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.MCP.Disconnect(payload.ID); err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "stop server", err)
	}
	if err := deps.Installer.MarkStopped(payload.ID, harbor.InstallInstalled); err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "record stop", err)
	}
	deps.ToolRegistry.ReplaceAll(mcpmgr.BridgeTools(deps.MCP, nil))
	return map[string]bool{"ok": true}, nil
}

type setServerSecretsPayload struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

func handleSetServerSecrets(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload setServerSecretsPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Installer.SetServerSecrets(payload.ID, payload.Values); err != nil {
		return nil, harbor.Wrap(harbor.ErrInternal, "set server secrets", err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGetServerStatus(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	rec, ok := deps.Installer.GetStatus(payload.ID)
	if !ok {
		return nil, harbor.NewError(harbor.ErrHarborNotFound, "no installed server "+payload.ID)
	}
	return rec, nil
}

// registerMCPServer hands the installer's resolved launch command to the
// MCP manager as a ServerConfig, so a subsequent Connect can find it. The
// manager has no static config file here: every server it knows about
// arrived through this path.
func registerMCPServer(deps *Deps, manifest harbor.ServerManifest, cmd *installer.ResolvedCommand) {
	env := deps.Installer.LaunchEnv(manifest, os.Environ())
	deps.MCP.RegisterServer(&mcpmgr.ServerConfig{
		ID:        manifest.ID,
		Name:      manifest.Name,
		Transport: mcpmgr.TransportStdio,
		Command:   cmd.Path,
		Args:      cmd.Args,
		Env:       envSliceToMap(env),
		AutoStart: false,
	})
}

func envSliceToMap(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

// toolSummariesForServer filters the registry-wide summary list down to one
// server's tools, for caching in its install record.
func toolSummariesForServer(deps *Deps, serverID string) []harbor.ToolSummary {
	all := mcpmgr.ToolSummaries(deps.MCP)
	summaries := make([]harbor.ToolSummary, 0, len(all))
	for _, s := range all {
		if s.Namespace == serverID {
			summaries = append(summaries, s)
		}
	}
	return summaries
}
