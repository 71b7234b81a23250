package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.coachTurnTool(),
		s.routeServicesTool(),
	)
}

func (s *Server) coachTurnTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("coach_turn",
		mcplib.WithDescription("Run one coaching turn: route the input, call the workers and return the aggregated result"),
		mcplib.WithString("user_input",
			mcplib.Required(),
			mcplib.Description("What the user said or typed"),
		),
		mcplib.WithString("user_id",
			mcplib.Description("User the turn belongs to; enables history"),
		),
		mcplib.WithString("audio_path",
			mcplib.Description("Path of a recording to transcribe first"),
		),
		mcplib.WithString("image_path",
			mcplib.Description("Path of a meal photo for the vision worker"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCoachTurn,
	}
}

func (s *Server) routeServicesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("route_services",
		mcplib.WithDescription("Show which worker services a message would be routed to, without calling them"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("Message to route"),
		),
		mcplib.WithString("audio_path",
			mcplib.Description("Set when the message comes with a recording"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRouteServices,
	}
}

type coachTurnResult struct {
	TurnID    string `json:"turn_id"`
	UserInput string `json:"user_input"`
	turn.Result
}

func (s *Server) handleCoachTurn(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Coach == nil {
		return mcplib.NewToolResultError("coach not configured"), nil
	}
	input, err := req.RequireString("user_input")
	if err != nil {
		return mcplib.NewToolResultError("user_input is required"), nil
	}
	done := s.deps.Coach.ProcessUserInput(ctx, service.TurnInput{
		UserID:    req.GetString("user_id", ""),
		UserInput: input,
		AudioPath: req.GetString("audio_path", ""),
		ImagePath: req.GetString("image_path", ""),
	})
	return toolResultJSON(coachTurnResult{
		TurnID:    done.TurnID,
		UserInput: done.UserInput,
		Result:    done.Result,
	})
}

type routeResult struct {
	Services []turn.RawCommand `json:"services"`
	LLMError string            `json:"llm_error,omitempty"`
}

func (s *Server) handleRouteServices(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Router == nil {
		return mcplib.NewToolResultError("router not configured"), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcplib.NewToolResultError("text is required"), nil
	}
	d := s.deps.Router.Route(ctx, service.RouteInput{
		Text:      text,
		AudioPath: req.GetString("audio_path", ""),
	})
	services := d.Services
	if services == nil {
		services = []turn.RawCommand{}
	}
	return toolResultJSON(routeResult{Services: services, LLMError: d.LLMError})
}

// toolResultJSON marshals v into a text result.
func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
