package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Actions checked against the chat policy.
const (
	ActionCreateSession     = "session.create"
	ActionGetSession        = "session.get"
	ActionListSessions      = "session.list"
	ActionUpdateSession     = "session.update"
	ActionRenameSession     = "session.rename"
	ActionDeleteSession     = "session.delete"
	ActionListMessages      = "message.list"
	ActionPostMessage       = "message.post"
	ActionDeleteMessage     = "message.delete"
	ActionSeen              = "session.seen"
	ActionTyping            = "session.typing"
	ActionReadNotifications = "notification.read"
)

// Input is the document the policy is evaluated against.
type Input struct {
	Action     string `json:"action"`
	Role       string `json:"role"`
	SenderType string `json:"sender_type,omitempty"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.livechat.authz.allow"),
		rego.Module("livechat_authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Allow reports whether role may perform action, acting as senderType where one applies.
// Anything the policy does not explicitly allow is denied.
func (e *Engine) Allow(ctx context.Context, in Input) (bool, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := results[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// DefaultPolicy lets admins do anything and guests act only as themselves on
// their own conversation.
const DefaultPolicy = `
package livechat.authz

import rego.v1

default allow := false

allow if input.role == "admin"

guest_actions := {
	"session.create",
	"session.get",
	"session.rename",
	"message.list",
}

guest_sender_actions := {
	"message.post",
	"session.seen",
	"session.typing",
}

allow if {
	input.role == "guest"
	guest_actions[input.action]
}

allow if {
	input.role == "guest"
	guest_sender_actions[input.action]
	input.sender_type == "guest"
}
`
