// Package router implements the native helper's dispatch table: the
// map[MessageType]Handler that the framed-message main loop consults for
// every decoded request, plus that main loop itself.
package router

import (
	"log/slog"

	"github.com/harborhq/harbor-helper/internal/agentloop"
	"github.com/harborhq/harbor-helper/internal/broker"
	"github.com/harborhq/harbor-helper/internal/catalog"
	"github.com/harborhq/harbor-helper/internal/installer"
	"github.com/harborhq/harbor-helper/internal/llm"
	"github.com/harborhq/harbor-helper/internal/mcpmgr"
	"github.com/harborhq/harbor-helper/internal/oauthbroker"
)

// Deps bundles every subsystem a handler might need. It is passed by
// pointer to every Handler call rather than smuggled into a closure per
// handler, so the dispatch table stays a flat, inspectable map instead of
// a pile of bound methods — the same "wire everything as fields on a
// composition root" shape the gateway server uses, scaled down to a
// single-process helper instead of a multi-tenant server.
type Deps struct {
	Broker       *broker.Broker
	Sessions     *broker.SessionManager
	MCP          *mcpmgr.Manager
	Catalog      *catalog.Manager
	Installer    *installer.Installer
	OAuth        *oauthbroker.Broker
	Orchestrator *agentloop.Orchestrator
	ToolRegistry *agentloop.ToolRegistry
	LLMRouter    *llm.Router
	Logger       *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
