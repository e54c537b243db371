package actions

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/social-agent/internal/config"
	"github.com/bakkerme/social-agent/internal/core"
)

// Env is what an action rule can see about an item.
type Env struct {
	Type      string `expr:"type"`
	Kind      string `expr:"kind"`
	Feed      string `expr:"feed"`
	Author    string `expr:"author"`
	Content   string `expr:"content"`
	HasMedia  bool   `expr:"has_media"`
	HasStatus bool   `expr:"has_status"`
	IsReply   bool   `expr:"is_reply"`
}

func envFor(item core.Item) Env {
	return Env{
		Type:      string(item.NotificationType),
		Kind:      string(item.Kind),
		Feed:      item.Feed,
		Author:    item.Author.Username,
		Content:   item.Content,
		HasMedia:  len(item.Media) > 0,
		HasStatus: item.HasStatus(),
		IsReply:   item.InReplyToID != "",
	}
}

// Policy decides which actions an item receives.
type Policy struct {
	programs map[core.Action]*vm.Program
}

func NewPolicy(rules config.ActionRules) (*Policy, error) {
	sources := map[core.Action]string{
		core.ActionFavourite:  rules.Favourite,
		core.ActionReblog:     rules.Reblog,
		core.ActionQuote:      rules.Quote,
		core.ActionReply:      rules.Reply,
		core.ActionFollowBack: rules.FollowBack,
	}
	p := &Policy{programs: map[core.Action]*vm.Program{}}
	for action, source := range sources {
		if source == "" {
			continue
		}
		program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile %s rule: %w", action, err)
		}
		p.programs[action] = program
	}
	return p, nil
}

// Decide evaluates every rule against item. A rule that fails to run is
// treated as false and reported in the returned error.
func (p *Policy) Decide(item core.Item) (core.ActionRequest, error) {
	var req core.ActionRequest
	if p == nil {
		return req, nil
	}
	env := envFor(item)
	var firstErr error
	for _, action := range core.ActionOrder {
		program, ok := p.programs[action]
		if !ok {
			continue
		}
		result, err := expr.Run(program, env)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("run %s rule: %w", action, err)
			}
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			req = req.Set(action, true)
		}
	}
	return req, firstErr
}
