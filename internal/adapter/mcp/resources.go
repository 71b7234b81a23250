package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const registryURI = "coach://registry"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			registryURI,
			"Worker registry",
			mcplib.WithResourceDescription("Capability/task pairs the orchestrator can dispatch, with their step kind"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRegistryResource,
	)
}

func (s *Server) handleRegistryResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text := `{"error":"registry not configured"}`
	if s.deps.Registry != nil {
		data, err := json.Marshal(s.deps.Registry.Bindings())
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
