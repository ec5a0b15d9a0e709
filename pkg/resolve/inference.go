// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/llm"
	"github.com/praxis-ai/praxis/pkg/resilience"
	"github.com/praxis-ai/praxis/pkg/session"
)

// Inferencer guesses values for missing fields from the latest user
// utterance using a language model. Absent keys in its result mean "could
// not infer".
type Inferencer struct {
	provider    llm.Provider
	model       string
	temperature float64
	timeout     time.Duration
}

// NewInferencer creates an inferencer backed by the given LLM provider.
func NewInferencer(provider llm.Provider, model string, timeout time.Duration) *Inferencer {
	return &Inferencer{provider: provider, model: model, timeout: timeout}
}

// Infer asks the model for values of the inference-enabled fields in missing.
// hints carries the option lists the backend pass surfaced, keyed by field
// name. The whole call is skipped (nil, nil) when no field enables inference
// or no provider is configured.
func (i *Inferencer) Infer(
	ctx context.Context,
	desc *capability.Descriptor,
	missing []*capability.FieldSpec,
	hints map[string][]capability.Option,
	collected map[string]interface{},
	utterance string,
) (map[string]interface{}, error) {
	if i == nil || i.provider == nil {
		return nil, nil
	}
	var enabled []*capability.FieldSpec
	for _, f := range missing {
		if f.InferenceEnabled() {
			enabled = append(enabled, f)
		}
	}
	if len(enabled) == 0 {
		return nil, nil
	}

	req := llm.ChatRequest{
		Model:       i.model,
		Temperature: i.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buildInferencePrompt(desc, enabled, hints, collected)},
			{Role: llm.RoleUser, Content: utterance},
		},
	}

	value, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: i.timeout}, func() (interface{}, error) {
		return i.provider.Chat(ctx, req)
	})
	if err != nil {
		return nil, errors.New(errors.CodeResolution, "inference call failed", err).WithRecoverable(true)
	}
	resp, ok := value.(*llm.ChatResponse)
	if !ok || resp == nil {
		return nil, nil
	}

	parsed, err := parseInferenceReply(resp.Content)
	if err != nil {
		slog.Warn("resolve.infer.unparseable",
			slog.String("capability", desc.ID),
			slog.Any("error", err),
		)
		return nil, nil
	}

	// Only keep keys for the fields we asked about, and never blanks.
	out := make(map[string]interface{}, len(parsed))
	for _, f := range enabled {
		v, ok := parsed[f.Name]
		if !ok || session.IsBlank(v) {
			continue
		}
		out[f.Name] = v
	}
	return out, nil
}

func buildInferencePrompt(
	desc *capability.Descriptor,
	fields []*capability.FieldSpec,
	hints map[string][]capability.Option,
	collected map[string]interface{},
) string {
	var sb strings.Builder
	sb.WriteString("You extract argument values for the business action ")
	sb.WriteString(fmt.Sprintf("%q from the user's latest message.\n", desc.ID))
	sb.WriteString("Reply with a single JSON object. Use only the field names listed below as keys.\n")
	sb.WriteString("Omit any field you cannot determine from the message. Never invent values.\n\n")
	sb.WriteString("Fields:\n")
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("- %s", f.Name))
		if f.Description != "" {
			sb.WriteString(": " + f.Description)
		}
		if f.Inference != nil && f.Inference.Prompt != "" {
			sb.WriteString(" (" + f.Inference.Prompt + ")")
		}
		sb.WriteString("\n")
		options := f.Options
		if len(options) == 0 {
			options = hints[f.Name]
		}
		if len(options) > 0 {
			sb.WriteString("  allowed values:")
			for _, opt := range options {
				sb.WriteString(fmt.Sprintf(" %s (%s)", opt.Value, opt.Label))
			}
			sb.WriteString("\n")
		}
	}
	if len(collected) > 0 {
		sb.WriteString("\nAlready collected:\n")
		for name, value := range collected {
			sb.WriteString(fmt.Sprintf("- %s: %v\n", name, value))
		}
	}
	return sb.String()
}

// parseInferenceReply extracts a JSON object from the model reply, tolerating
// surrounding prose and markdown code fences.
func parseInferenceReply(content string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(content)
	if idx := strings.Index(trimmed, "{"); idx >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > idx {
			trimmed = trimmed[idx : end+1]
		}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("inference reply is not a JSON object: %w", err)
	}
	return out, nil
}
