package models

import "time"

// ResponseType is the shape of an outbound reply.
type ResponseType string

const (
	ResponseClarify     ResponseType = "clarify"
	ResponseTemplate    ResponseType = "template"
	ResponseInteractive ResponseType = "interactive"
	ResponsePlain       ResponseType = "plain"
	ResponseMedia       ResponseType = "media"
)

// Option is a tappable choice rendered as a button or list row.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// TemplateRef binds a catalog template to concrete variables.
type TemplateRef struct {
	Name      string            `json:"name"`
	ContentID string            `json:"content_id"`
	Language  string            `json:"language,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Params    []string          `json:"params,omitempty"` // Variables in declaration order
}

// SkillResponse is the structured reply before rendering.
type SkillResponse struct {
	Type     ResponseType `json:"type"`
	Text     string       `json:"text,omitempty"`
	Options  []Option     `json:"options,omitempty"`
	MediaURL string       `json:"media_url,omitempty"`
	Template *TemplateRef `json:"template,omitempty"`
	Stage    string       `json:"stage,omitempty"`
}

// OutboundPayload is a SkillResponse rendered for one recipient.
type OutboundPayload struct {
	Recipient string        `json:"recipient"`
	Response  SkillResponse `json:"response"`
	Body      string        `json:"body"`
	Hash      string        `json:"hash"`
	CreatedAt time.Time     `json:"created_at"`
}
