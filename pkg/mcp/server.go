// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes every registered capability as an MCP tool, so a
// model-facing host can drive the slot-filling conversation over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/orchestrator"
	"github.com/praxis-ai/praxis/pkg/session"
)

// ConversationArg is the reserved tool argument carrying the conversation
// id. It is a control argument and never reaches the dispatched payload.
const ConversationArg = "_conversation"

// Server registers capabilities as MCP tools and serves them on stdio.
// Identity is fixed at construction: an MCP session belongs to one caller.
type Server struct {
	mcpServer *server.MCPServer
	orch      *orchestrator.Orchestrator
	identity  session.Identity
}

// NewServer builds the MCP surface for the given registry. Each enabled
// capability becomes one tool named after its id.
func NewServer(name, version string, orch *orchestrator.Orchestrator, registry *capability.Registry, identity session.Identity) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
		orch:      orch,
		identity:  identity,
	}
	for _, d := range registry.List() {
		s.register(d)
	}
	return s
}

func (s *Server) register(d *capability.Descriptor) {
	schema, err := toolSchema(d)
	if err != nil {
		slog.Error("mcp.schema_failed", "capability", d.ID, "error", err)
		return
	}
	description := d.Name
	if description == "" {
		description = d.ID
	}
	tool := mcp.NewToolWithRawSchema(d.ID, description, schema)
	s.mcpServer.AddTool(tool, s.handler(d.ID))
}

func (s *Server) handler(capabilityID string) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		conversation, _ := args[ConversationArg].(string)

		resp, err := s.orch.Handle(ctx, capabilityID, args, conversation, s.identity)
		if err != nil {
			return mcp.NewToolResultError(errors.UserMessage(errors.CodeOf(err))), nil
		}
		encoded, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

// toolSchema builds the JSON schema for a capability's tool arguments:
// the declared fields plus the reserved conversation, utterance, and
// confirmation arguments.
func toolSchema(d *capability.Descriptor) (json.RawMessage, error) {
	properties := map[string]interface{}{
		ConversationArg: map[string]interface{}{
			"type":        "string",
			"description": "Conversation id; reuse it across turns to resume the draft.",
		},
		orchestrator.UtteranceArg: map[string]interface{}{
			"type":        "string",
			"description": "The user's latest free-text message, used to infer field values.",
		},
	}
	for _, f := range d.Fields {
		properties[f.Name] = fieldSchema(f)
	}
	if d.Confirm {
		properties[d.ConfirmArgName()] = map[string]interface{}{
			"type":        "boolean",
			"description": "Set true to confirm submission after reviewing the preview.",
		}
	}
	return json.Marshal(map[string]interface{}{
		"type":       "object",
		"properties": properties,
	})
}

func fieldSchema(f capability.FieldSpec) map[string]interface{} {
	out := map[string]interface{}{}
	switch f.Type {
	case capability.FieldTypeNumber:
		out["type"] = "number"
	case capability.FieldTypeBool:
		out["type"] = "boolean"
	default:
		out["type"] = "string"
	}
	if f.Description != "" {
		out["description"] = f.Description
	} else if f.Label != "" {
		out["description"] = f.Label
	}
	if len(f.Options) > 0 {
		values := make([]string, 0, len(f.Options))
		for _, o := range f.Options {
			values = append(values, o.Value)
		}
		out["enum"] = values
	}
	return out
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
