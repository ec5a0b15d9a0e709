// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives one capability invocation from raw arguments
// to a terminal response: merge the draft with new input, resolve missing
// fields through backend lookups and model inference, gate on confirmation,
// inject permission overrides, dispatch, and persist the outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/dispatch"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/permission"
	"github.com/praxis-ai/praxis/pkg/resolve"
	"github.com/praxis-ai/praxis/pkg/session"
	"github.com/praxis-ai/praxis/pkg/telemetry"
)

// Config assembles an Orchestrator. Registry, Store, and Router are
// required; the rest default to no-op collaborators.
type Config struct {
	Registry    *capability.Registry
	Store       session.Store
	Resolver    *resolve.Resolver
	Inferencer  *resolve.Inferencer
	Permissions permission.Service
	Router      *dispatch.Router

	// Metrics is optional; a nil value records nothing.
	Metrics *telemetry.EngineMetrics

	// DraftTTL bounds how long an abandoned draft stays resumable. Zero
	// means drafts never expire.
	DraftTTL time.Duration
}

// Orchestrator is safe for concurrent use. Invocations for the same
// (capability, conversation) pair are serialized through a keyed lock so
// two simultaneous turns cannot drop each other's input.
type Orchestrator struct {
	registry    *capability.Registry
	store       session.Store
	locker      *session.Locker
	resolver    *resolve.Resolver
	inferencer  *resolve.Inferencer
	permissions permission.Service
	router      *dispatch.Router
	metrics     *telemetry.EngineMetrics
	draftTTL    time.Duration
}

// New creates an orchestrator from the config.
func New(cfg Config) *Orchestrator {
	store := cfg.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	perms := cfg.Permissions
	if perms == nil {
		perms = permission.AllowAll()
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		store:       store,
		locker:      session.NewLocker(),
		resolver:    cfg.Resolver,
		inferencer:  cfg.Inferencer,
		permissions: perms,
		router:      cfg.Router,
		metrics:     cfg.Metrics,
		draftTTL:    cfg.DraftTTL,
	}
}

// Handle drives one invocation. The returned error is non-nil only when the
// invocation could not be processed at all (unknown or disabled capability,
// draft store unavailable); every processed invocation yields a Response,
// including failures, which arrive as SUBMIT_FAILED.
func (o *Orchestrator) Handle(ctx context.Context, capabilityID string, rawArgs map[string]interface{}, conversationID string, identity session.Identity) (*Response, error) {
	tracer := otel.Tracer("praxis/orchestrator")
	ctx, span := tracer.Start(ctx, "invoke")
	defer span.End()
	span.SetAttributes(telemetry.InvocationAttributes(capabilityID, conversationID, identity.Tenant, "")...)

	resp, err := o.handle(ctx, capabilityID, rawArgs, conversationID, identity)
	if err != nil {
		o.metrics.RecordError(ctx, err, "orchestrator")
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrStatus, string(resp.Status)))
	o.metrics.RecordInvocation(ctx, capabilityID, string(resp.Status))
	return resp, nil
}

func (o *Orchestrator) handle(ctx context.Context, capabilityID string, rawArgs map[string]interface{}, conversationID string, identity session.Identity) (*Response, error) {
	d, err := o.registry.Get(capabilityID)
	if err != nil {
		return nil, err
	}

	if !d.NeedsCollection() {
		// Single-shot capability: no draft, straight to dispatch with the
		// raw arguments, still subject to permission injection.
		return o.submit(ctx, d, nil, cleanArgs(d, rawArgs), nil, identity), nil
	}

	key := session.Key{CapabilityID: d.ID, ConversationID: conversationID}
	unlock := o.locker.Lock(key)
	defer unlock()

	draft, err := o.store.Load(ctx, key)
	if err != nil {
		// Fail closed: dispatch has side effects that must not run against
		// an unknown draft state.
		return nil, err
	}
	if draft == nil || draft.Expired(time.Now()) {
		draft = session.NewDraft(key, identity)
	}

	merged, inferred, hints := o.collect(ctx, d, draft, rawArgs, identity)

	if missing := missingRequired(d, merged); len(missing) > 0 {
		if err := o.persist(ctx, draft, merged, session.StatusMissingFields); err != nil {
			return nil, err
		}
		return missingResponse(d, missing, merged, inferred, hints), nil
	}

	if d.Confirm && !capability.Truthy(rawArgs[d.ConfirmArgName()]) {
		if err := o.persist(ctx, draft, merged, session.StatusAwaitingConfirmation); err != nil {
			return nil, err
		}
		return &Response{
			CapabilityID: d.ID,
			Status:       session.StatusAwaitingConfirmation,
			Preview:      merged,
			ConfirmArg:   d.ConfirmArgName(),
			Inferred:     inferred,
		}, nil
	}

	return o.submit(ctx, d, draft, merged, inferred, identity), nil
}

// collect merges the draft with the new input and runs the resolution
// pipeline: a backend lookup pass, an inference pass over whatever is still
// missing, and a final backend pass to reconcile fields the inference pass
// unblocked. Returns the merged set, the values inferred this turn, and the
// option hints surfaced for still-missing fields.
func (o *Orchestrator) collect(ctx context.Context, d *capability.Descriptor, draft *session.Draft, rawArgs map[string]interface{}, identity session.Identity) (merged, inferred map[string]interface{}, hints map[string]resolve.Outcome) {
	merged = make(map[string]interface{}, len(draft.Values)+len(rawArgs))
	for name, value := range draft.Values {
		merged[name] = value
	}
	for name, value := range cleanArgs(d, rawArgs) {
		merged[name] = value
	}

	missing := missingRequired(d, merged)
	if len(missing) == 0 {
		return merged, nil, nil
	}

	hints = make(map[string]resolve.Outcome)

	// Pass 1: backend lookups.
	outcomes := o.resolver.ResolveBatch(ctx, d, missing, merged, identity)
	applyOutcomes(d, merged, outcomes, hints)

	// Pass 2: inference over what is left.
	missing = missingRequired(d, merged)
	if len(missing) == 0 {
		return merged, nil, hints
	}
	utterance, _ := rawArgs[UtteranceArg].(string)
	guessed, err := o.inferencer.Infer(ctx, d, missing, optionHints(hints), merged, utterance)
	if err != nil {
		// A failed inference call leaves its fields unresolved, nothing more.
		slog.Warn("orchestrator.infer.failed", "capability_id", d.ID, "error", err)
	}
	inferred = make(map[string]interface{}, len(guessed))
	for name, value := range guessed {
		f := d.Field(name)
		if f == nil {
			continue
		}
		// An inferred value faces the same validation as a user-supplied one.
		if err := f.ValidateValue(value); err != nil {
			slog.Debug("orchestrator.infer.rejected", "capability_id", d.ID, "field", name, "error", err)
			continue
		}
		merged[name] = value
		inferred[name] = value
	}
	if len(inferred) == 0 {
		inferred = nil
	}

	// Pass 2.5: reconcile fields whose dependencies inference just met.
	if missing = missingRequired(d, merged); len(missing) > 0 {
		outcomes = o.resolver.ResolveBatch(ctx, d, missing, merged, identity)
		applyOutcomes(d, merged, outcomes, hints)
	}
	return merged, inferred, hints
}

// submit asks the permission service for a decision, injects its overrides,
// and dispatches. draft may be nil for single-shot capabilities.
func (o *Orchestrator) submit(ctx context.Context, d *capability.Descriptor, draft *session.Draft, merged map[string]interface{}, inferred map[string]interface{}, identity session.Identity) *Response {
	decision, err := o.permissions.Decide(ctx, identity.Tenant, d.ID, identity)
	if err != nil {
		// An unreachable permission service is a deny.
		slog.Error("orchestrator.permission.unreachable", "capability_id", d.ID, "error", err)
		return o.failed(ctx, d, draft, merged, errors.CodePermissionDenied)
	}
	if !decision.Allowed {
		slog.Info("orchestrator.permission.denied",
			"capability_id", d.ID,
			"tenant", identity.Tenant,
			"caller", identity.Caller,
			"rule_id", decision.RuleID,
			"reason", decision.Reason)
		return o.failed(ctx, d, draft, merged, errors.CodePermissionDenied)
	}

	// Overrides are applied after all slot-filling and confirmation logic
	// and always beat caller-supplied or inferred values.
	final := make(map[string]interface{}, len(merged)+len(decision.Overrides))
	for name, value := range merged {
		final[name] = value
	}
	for name, value := range decision.Overrides {
		final[name] = value
	}

	result, err := o.router.Dispatch(ctx, d, identity, final)
	if err != nil {
		o.metrics.RecordDispatch(ctx, string(d.Binding.Type), false)
		code := errors.CodeOf(err)
		if code == errors.CodeInternal {
			code = errors.CodeDispatch
		}
		return o.failed(ctx, d, draft, merged, code)
	}

	o.metrics.RecordDispatch(ctx, result.Route, true)
	if draft != nil {
		if err := o.store.Delete(ctx, draft.Key()); err != nil {
			// The call already happened; surface the success and leave the
			// stale draft to the sweeper.
			slog.Error("orchestrator.draft.delete_failed", "capability_id", d.ID, "error", err)
		}
	}
	return &Response{
		CapabilityID: d.ID,
		Status:       session.StatusSubmitted,
		Payload:      result.Payload,
		StatusCode:   result.StatusCode,
		Inferred:     inferred,
	}
}

func (o *Orchestrator) failed(ctx context.Context, d *capability.Descriptor, draft *session.Draft, merged map[string]interface{}, code errors.ErrorCode) *Response {
	if draft != nil {
		if err := o.persist(ctx, draft, merged, session.StatusSubmitFailed); err != nil {
			slog.Error("orchestrator.draft.save_failed", "capability_id", d.ID, "error", err)
		}
	}
	return &Response{
		CapabilityID: d.ID,
		Status:       session.StatusSubmitFailed,
		ErrorCode:    string(code),
		Message:      errors.UserMessage(code),
	}
}

func (o *Orchestrator) persist(ctx context.Context, draft *session.Draft, merged map[string]interface{}, status session.Status) error {
	draft.Values = merged
	draft.Status = status
	draft.UpdatedAt = time.Now()
	if o.draftTTL > 0 {
		draft.ExpiresAt = draft.UpdatedAt.Add(o.draftTTL)
	}
	return o.store.Save(ctx, draft)
}

// cleanArgs strips control arguments and blanks, and drops values that fail
// the field's own validation so a bad value re-prompts instead of reaching a
// backend.
func cleanArgs(d *capability.Descriptor, rawArgs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(rawArgs))
	for name, value := range rawArgs {
		if d.IsControlArg(name) || session.IsBlank(value) {
			continue
		}
		if f := d.Field(name); f != nil {
			if err := f.ValidateValue(value); err != nil {
				slog.Debug("orchestrator.input.rejected", "capability_id", d.ID, "field", name, "error", err)
				continue
			}
		}
		out[name] = value
	}
	return out
}

func missingRequired(d *capability.Descriptor, merged map[string]interface{}) []*capability.FieldSpec {
	var missing []*capability.FieldSpec
	for _, f := range d.RequiredFields() {
		if _, ok := merged[f.Name]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func applyOutcomes(d *capability.Descriptor, merged map[string]interface{}, outcomes map[string]resolve.Outcome, hints map[string]resolve.Outcome) {
	for name, outcome := range outcomes {
		if outcome.Err != nil {
			continue
		}
		hints[name] = outcome
		if !outcome.Applied {
			continue
		}
		f := d.Field(name)
		if f == nil || session.IsBlank(outcome.Value) {
			continue
		}
		if err := f.ValidateValue(outcome.Value); err != nil {
			continue
		}
		merged[name] = outcome.Value
	}
}

func optionHints(hints map[string]resolve.Outcome) map[string][]capability.Option {
	out := make(map[string][]capability.Option, len(hints))
	for name, outcome := range hints {
		if len(outcome.Options) > 0 {
			out[name] = outcome.Options
		}
	}
	return out
}

func missingResponse(d *capability.Descriptor, missing []*capability.FieldSpec, merged, inferred map[string]interface{}, hints map[string]resolve.Outcome) *Response {
	ordered := orderForAsking(d, missing, merged)
	fields := make([]MissingField, 0, len(ordered))
	for _, f := range ordered {
		mf := MissingField{
			Name:        f.Name,
			Label:       f.DisplayLabel(),
			Description: f.Description,
			Options:     f.Options,
		}
		if outcome, ok := hints[f.Name]; ok {
			if len(outcome.Options) > 0 {
				mf.Options = outcome.Options
			}
			mf.NextCursor = outcome.NextCursor
			mf.HasMore = outcome.HasMore
		}
		fields = append(fields, mf)
	}
	return &Response{
		CapabilityID: d.ID,
		Status:       session.StatusMissingFields,
		Missing:      fields,
		NextField:    ordered[0].Name,
		Inferred:     inferred,
	}
}
