package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/service"
)

type staticBindings []service.Binding

func (b staticBindings) Bindings() []service.Binding { return b }

func readRegistry(t *testing.T, s *Server) string {
	t.Helper()
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = registryURI
	contents, err := s.handleRegistryResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected one content block, got %d", len(contents))
	}
	text, ok := contents[0].(mcplib.TextResourceContents)
	if !ok {
		t.Fatal("expected TextResourceContents")
	}
	if text.URI != registryURI {
		t.Errorf("unexpected URI %q", text.URI)
	}
	return text.Text
}

func TestRegistryResource(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test"}, ServerDeps{Registry: staticBindings{
		{Capability: "mood", Task: "analyze-mood", Kind: turn.KindMood},
	}})

	var got []service.Binding
	if err := json.Unmarshal([]byte(readRegistry(t, s)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Kind != turn.KindMood {
		t.Fatalf("unexpected bindings %+v", got)
	}
}

func TestRegistryResourceUnconfigured(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test"}, ServerDeps{})
	if text := readRegistry(t, s); text != `{"error":"registry not configured"}` {
		t.Fatalf("unexpected text %s", text)
	}
}
