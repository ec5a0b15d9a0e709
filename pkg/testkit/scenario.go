// SPDX-License-Identifier: Apache-2.0

// Package testkit provides a declarative harness for multi-turn capability
// conversations: each turn sends arguments and asserts on the structured
// response, so slot-filling flows read as scripts instead of plumbing.
//
// Example:
//
//	testkit.NewScenario("create unit").
//	    ForCapability("unit.create").
//	    Turn(nil, testkit.ExpectStatus(session.StatusMissingFields)).
//	    Turn(testkit.Args{"name": "alpha"}, testkit.ExpectStatus(session.StatusSubmitted)).
//	    Run(t, orch)
package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/praxis-ai/praxis/pkg/orchestrator"
	"github.com/praxis-ai/praxis/pkg/session"
)

// Args is shorthand for one turn's raw arguments.
type Args map[string]interface{}

// Handler runs one invocation. *orchestrator.Orchestrator implements it.
type Handler interface {
	Handle(ctx context.Context, capabilityID string, rawArgs map[string]interface{}, conversationID string, identity session.Identity) (*orchestrator.Response, error)
}

// Expectation is a condition checked against one turn's response.
type Expectation interface {
	Check(resp *orchestrator.Response) error
	Description() string
}

type turn struct {
	args   Args
	expect []Expectation
}

// Scenario is a scripted conversation against one capability.
type Scenario struct {
	name           string
	capabilityID   string
	conversationID string
	identity       session.Identity
	timeout        time.Duration
	turns          []turn
}

// NewScenario creates a scenario with a generated conversation id.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:           name,
		conversationID: "conv-" + name,
		timeout:        10 * time.Second,
	}
}

// ForCapability sets the capability every turn invokes.
func (s *Scenario) ForCapability(id string) *Scenario {
	s.capabilityID = id
	return s
}

// WithConversation overrides the conversation id.
func (s *Scenario) WithConversation(id string) *Scenario {
	s.conversationID = id
	return s
}

// WithIdentity sets the tenant/caller identity for every turn.
func (s *Scenario) WithIdentity(identity session.Identity) *Scenario {
	s.identity = identity
	return s
}

// Turn appends one invocation with its expectations.
func (s *Scenario) Turn(args Args, expect ...Expectation) *Scenario {
	s.turns = append(s.turns, turn{args: args, expect: expect})
	return s
}

// Run executes every turn in order and reports expectation failures. It
// returns the final turn's response for further assertions.
func (s *Scenario) Run(t *testing.T, h Handler) *orchestrator.Response {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var last *orchestrator.Response
	for i, turn := range s.turns {
		resp, err := h.Handle(ctx, s.capabilityID, turn.args, s.conversationID, s.identity)
		if err != nil {
			t.Fatalf("scenario %q turn %d: %v", s.name, i+1, err)
		}
		for _, exp := range turn.expect {
			if err := exp.Check(resp); err != nil {
				t.Errorf("scenario %q turn %d, %s: %v", s.name, i+1, exp.Description(), err)
			}
		}
		last = resp
	}
	return last
}

type checkFunc struct {
	desc  string
	check func(resp *orchestrator.Response) error
}

func (c *checkFunc) Check(resp *orchestrator.Response) error { return c.check(resp) }
func (c *checkFunc) Description() string                     { return c.desc }

// ExpectStatus asserts the response status tag.
func ExpectStatus(want session.Status) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect status %s", want),
		check: func(resp *orchestrator.Response) error {
			if resp.Status != want {
				return fmt.Errorf("got status %s", resp.Status)
			}
			return nil
		},
	}
}

// ExpectMissing asserts every named field appears in the missing list.
func ExpectMissing(names ...string) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect missing %v", names),
		check: func(resp *orchestrator.Response) error {
			present := make(map[string]bool, len(resp.Missing))
			for _, f := range resp.Missing {
				present[f.Name] = true
			}
			for _, name := range names {
				if !present[name] {
					return fmt.Errorf("field %q not in missing list %v", name, resp.Missing)
				}
			}
			return nil
		},
	}
}

// ExpectNextField asserts the proposed next field to ask.
func ExpectNextField(name string) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect next field %q", name),
		check: func(resp *orchestrator.Response) error {
			if resp.NextField != name {
				return fmt.Errorf("got next field %q", resp.NextField)
			}
			return nil
		},
	}
}

// ExpectPreview asserts one collected value in the confirmation preview.
func ExpectPreview(field string, want interface{}) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect preview %s=%v", field, want),
		check: func(resp *orchestrator.Response) error {
			got, ok := resp.Preview[field]
			if !ok {
				return fmt.Errorf("field %q not in preview %v", field, resp.Preview)
			}
			if got != want {
				return fmt.Errorf("got %v", got)
			}
			return nil
		},
	}
}

// ExpectInferred asserts a value was produced by inference this turn.
func ExpectInferred(field string, want interface{}) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect inferred %s=%v", field, want),
		check: func(resp *orchestrator.Response) error {
			got, ok := resp.Inferred[field]
			if !ok {
				return fmt.Errorf("field %q not in inferred set %v", field, resp.Inferred)
			}
			if got != want {
				return fmt.Errorf("got %v", got)
			}
			return nil
		},
	}
}

// ExpectErrorCode asserts the SUBMIT_FAILED error code.
func ExpectErrorCode(code string) Expectation {
	return &checkFunc{
		desc: fmt.Sprintf("expect error code %s", code),
		check: func(resp *orchestrator.Response) error {
			if resp.ErrorCode != code {
				return fmt.Errorf("got error code %q (message %q)", resp.ErrorCode, resp.Message)
			}
			return nil
		},
	}
}
