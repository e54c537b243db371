package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakkerme/social-agent/internal/config"
	"github.com/bakkerme/social-agent/internal/core"
)

func TestPolicyDefaults(t *testing.T) {
	defaults := config.Default().Actions
	notifications, err := NewPolicy(defaults.Notifications)
	require.NoError(t, err)

	mention := core.Item{Kind: core.KindNotification, NotificationType: core.NotificationMention, StatusID: "s1"}
	req, err := notifications.Decide(mention)
	require.NoError(t, err)
	assert.Equal(t, core.ActionRequest{Favourite: true, Reply: true}, req)

	follow := core.Item{Kind: core.KindNotification, NotificationType: core.NotificationFollow}
	req, err = notifications.Decide(follow)
	require.NoError(t, err)
	assert.Equal(t, core.ActionRequest{FollowBack: true}, req)

	favourite := core.Item{Kind: core.KindNotification, NotificationType: core.NotificationFavourite}
	req, err = notifications.Decide(favourite)
	require.NoError(t, err)
	assert.True(t, req.Empty())

	timelines, err := NewPolicy(defaults.Timelines)
	require.NoError(t, err)
	req, err = timelines.Decide(core.Item{Kind: core.KindStatus, StatusID: "s2", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, core.ActionRequest{Favourite: true, Reply: true}, req)
}

func TestPolicyCustomRules(t *testing.T) {
	p, err := NewPolicy(config.ActionRules{
		Reblog: `has_media && author in ["carol", "dave"]`,
		Quote:  `content contains "breaking" && !is_reply`,
	})
	require.NoError(t, err)

	req, err := p.Decide(core.Item{Author: core.Author{Username: "carol"}, Media: []core.Media{{ID: "m"}}, Content: "breaking news"})
	require.NoError(t, err)
	assert.Equal(t, core.ActionRequest{Reblog: true, Quote: true}, req)

	req, err = p.Decide(core.Item{Author: core.Author{Username: "erin"}, Content: "breaking", InReplyToID: "x"})
	require.NoError(t, err)
	assert.True(t, req.Empty())
}

func TestPolicyRejectsInvalidRules(t *testing.T) {
	_, err := NewPolicy(config.ActionRules{Favourite: `unknown_field == 1`})
	assert.Error(t, err)

	_, err = NewPolicy(config.ActionRules{Reply: `"not a bool"`})
	assert.Error(t, err)
}
