package core

import "time"

// ItemKind distinguishes the sources a RemoteItem can come from.
type ItemKind string

const (
	KindStatus       ItemKind = "status"
	KindNotification ItemKind = "notification"
	KindPost         ItemKind = "post"
)

// NotificationType is the platform's notification type tag.
type NotificationType string

const (
	NotificationMention        NotificationType = "mention"
	NotificationStatus         NotificationType = "status"
	NotificationFavourite      NotificationType = "favourite"
	NotificationReblog         NotificationType = "reblog"
	NotificationFollow         NotificationType = "follow"
	NotificationPoll           NotificationType = "poll"
	NotificationPollEnd        NotificationType = "poll_end"
	NotificationGroupMention   NotificationType = "group_mention"
	NotificationGroupFavourite NotificationType = "group_favourite"
	NotificationGroupReblog    NotificationType = "group_reblog"
	NotificationGroupApproval  NotificationType = "group_approval"
)

// AllNotificationTypes is the fixed enumeration accepted by the notifications endpoint.
var AllNotificationTypes = []NotificationType{
	NotificationMention,
	NotificationStatus,
	NotificationFavourite,
	NotificationReblog,
	NotificationFollow,
	NotificationPoll,
	NotificationPollEnd,
	NotificationGroupMention,
	NotificationGroupFavourite,
	NotificationGroupReblog,
	NotificationGroupApproval,
}

// Author identifies the account behind an item.
type Author struct {
	ID          string `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// Media is an attachment reference carried by a post.
type Media struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsImage reports whether the attachment can be sent to a vision model.
func (m Media) IsImage() bool {
	return m.Type == "image" || m.Type == "gifv"
}

// Item is a post or notification as it flows through a poll iteration.
// IDs are platform assigned and increase with time within a feed.
type Item struct {
	ID                string           `json:"id" yaml:"id"`
	Kind              ItemKind         `json:"kind" yaml:"kind"`
	Feed              string           `json:"feed" yaml:"feed"`
	NotificationType  NotificationType `json:"notification_type,omitempty" yaml:"notification_type,omitempty"`
	StatusID          string           `json:"status_id,omitempty" yaml:"status_id,omitempty"`
	InReplyToID       string           `json:"in_reply_to_id,omitempty" yaml:"in_reply_to_id,omitempty"`
	Author            Author           `json:"author" yaml:"author"`
	Content           string           `json:"content" yaml:"content"`
	Media             []Media          `json:"media,omitempty" yaml:"media,omitempty"`
	ImageDescriptions []string         `json:"image_descriptions,omitempty" yaml:"image_descriptions,omitempty"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
}

// HasStatus reports whether the item points at a status that can be favourited,
// reblogged, quoted or replied to. Follow notifications do not.
func (i Item) HasStatus() bool {
	return i.StatusID != ""
}
