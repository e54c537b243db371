package core

// Action is the tag recorded for an outbound action that was applied to an item.
type Action string

const (
	ActionFavourite  Action = "favourite"
	ActionReblog     Action = "reblog"
	ActionQuote      Action = "quote"
	ActionReply      Action = "reply"
	ActionFollowBack Action = "follow_back"
)

// ActionOrder is the fixed order in which requested actions are attempted.
var ActionOrder = []Action{ActionFavourite, ActionReblog, ActionQuote, ActionReply, ActionFollowBack}

// ActionRequest is the set of independent intents attached to one item.
type ActionRequest struct {
	Favourite  bool
	Reblog     bool
	Quote      bool
	Reply      bool
	FollowBack bool
}

// Wants reports whether the given action was requested.
func (r ActionRequest) Wants(action Action) bool {
	switch action {
	case ActionFavourite:
		return r.Favourite
	case ActionReblog:
		return r.Reblog
	case ActionQuote:
		return r.Quote
	case ActionReply:
		return r.Reply
	case ActionFollowBack:
		return r.FollowBack
	default:
		return false
	}
}

// Set returns a copy of the request with the given action toggled.
func (r ActionRequest) Set(action Action, value bool) ActionRequest {
	switch action {
	case ActionFavourite:
		r.Favourite = value
	case ActionReblog:
		r.Reblog = value
	case ActionQuote:
		r.Quote = value
	case ActionReply:
		r.Reply = value
	case ActionFollowBack:
		r.FollowBack = value
	}
	return r
}

// Empty reports whether no action was requested.
func (r ActionRequest) Empty() bool {
	return !r.Favourite && !r.Reblog && !r.Quote && !r.Reply && !r.FollowBack
}

// ActionStrings converts applied actions into their persisted string form.
func ActionStrings(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		out = append(out, string(action))
	}
	return out
}
