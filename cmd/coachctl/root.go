package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CoachForge/internal/adapter/agentclient"
	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

type options struct {
	orchestrator string
	memory       string
	manager      string
	user         string
	timeout      time.Duration
	raw          bool
}

func newRootCmd() *cobra.Command {
	defaults := config.Defaults()
	opts := &options{}

	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Talk to a running CoachForge deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.orchestrator, "orchestrator", "http://127.0.0.1:8000/mcp", "orchestrator /mcp URL")
	pf.StringVar(&opts.memory, "memory", defaults.Services.Memory, "memory service /mcp URL")
	pf.StringVar(&opts.manager, "manager", defaults.Services.Manager, "manager service /mcp URL")
	pf.StringVarP(&opts.user, "user", "u", "", "user ID carried in the envelope context")
	pf.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout")
	pf.BoolVar(&opts.raw, "json", false, "print the raw reply payload")

	root.AddCommand(newAskCmd(opts), newHistoryCmd(opts), newHealthCmd(opts))
	return root
}

// call sends one request envelope and returns the reply payload decoded as T.
// A reply with status error becomes an error carrying its message.
func call[T interface{ OK() bool }](ctx context.Context, opts *options, ep worker.Endpoint, payload any) (T, json.RawMessage, error) {
	var zero T
	req, err := envelope.NewRequest(envelope.ServiceInterface, ep.Name, payload, envelope.Context{UserID: opts.user})
	if err != nil {
		return zero, nil, err
	}
	reply, err := agentclient.New(opts.timeout).Call(ctx, ep, req)
	if err != nil {
		return zero, nil, err
	}
	v, err := envelope.Decode[T](reply)
	if err != nil {
		return zero, nil, err
	}
	if !v.OK() {
		var head envelope.Reply
		_ = json.Unmarshal(reply.Payload, &head)
		if head.Message == "" {
			head.Message = "status " + string(head.Status)
		}
		return zero, reply.Payload, fmt.Errorf("%s: %s", ep.Name, head.Message)
	}
	return v, reply.Payload, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
