package platform

import (
	"time"

	"github.com/bakkerme/social-agent/internal/core"
)

type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
}

type MediaAttachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
}

type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Status struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	Content          string            `json:"content"`
	Visibility       string            `json:"visibility"`
	InReplyToID      string            `json:"in_reply_to_id"`
	QuoteID          string            `json:"quote_id"`
	Account          Account           `json:"account"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	Group            *Group            `json:"group"`
	URL              string            `json:"url"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `json:"account"`
	Status    *Status   `json:"status"`
}

type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SearchResults struct {
	Accounts []Account `json:"accounts"`
	Statuses []Status  `json:"statuses"`
	Hashtags []Tag     `json:"hashtags"`
}

// StatusParams is the body of a status-creation call.
type StatusParams struct {
	Status      string   `json:"status"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
	QuoteID     string   `json:"quote_id,omitempty"`
	MediaIDs    []string `json:"media_ids,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
}

// StatusItem converts a timeline status into a core item for feed.
func StatusItem(feed string, s Status) core.Item {
	return core.Item{
		ID:          s.ID,
		Kind:        core.KindStatus,
		Feed:        feed,
		StatusID:    s.ID,
		InReplyToID: s.InReplyToID,
		Author:      accountAuthor(s.Account),
		Content:     PlainText(s.Content),
		Media:       attachments(s.MediaAttachments),
		CreatedAt:   s.CreatedAt,
	}
}

// NotificationItem converts a notification into a core item. The status, when
// present, becomes the target of status actions.
func NotificationItem(feed string, n Notification) core.Item {
	item := core.Item{
		ID:               n.ID,
		Kind:             core.KindNotification,
		Feed:             feed,
		NotificationType: core.NotificationType(n.Type),
		Author:           accountAuthor(n.Account),
		CreatedAt:        n.CreatedAt,
	}
	if n.Status != nil {
		item.StatusID = n.Status.ID
		item.InReplyToID = n.Status.InReplyToID
		item.Content = PlainText(n.Status.Content)
		item.Media = attachments(n.Status.MediaAttachments)
	}
	return item
}

func accountAuthor(a Account) core.Author {
	username := a.Acct
	if username == "" {
		username = a.Username
	}
	return core.Author{ID: a.ID, Username: username, DisplayName: a.DisplayName}
}

func attachments(media []MediaAttachment) []core.Media {
	if len(media) == 0 {
		return nil
	}
	out := make([]core.Media, 0, len(media))
	for _, m := range media {
		url := m.URL
		if url == "" {
			url = m.PreviewURL
		}
		out = append(out, core.Media{ID: m.ID, Type: m.Type, URL: url, Description: m.Description})
	}
	return out
}
