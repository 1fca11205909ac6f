package ingress

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ikanisa/easymo-router/internal/models"
)

// TwilioPayload is an inbound WhatsApp message posted by Twilio as a form.
type TwilioPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // whatsapp:+250788123456
	To                string `form:"To"`
	Body              string `form:"Body"`
	ProfileName       string `form:"ProfileName"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	ButtonPayload     string `form:"ButtonPayload"`
	ButtonText        string `form:"ButtonText"`
	Latitude          string `form:"Latitude"`
	Longitude         string `form:"Longitude"`
	MessageStatus     string `form:"MessageStatus"`
}

// IsStatus reports whether the form is a delivery status callback.
func (p TwilioPayload) IsStatus() bool {
	return p.MessageStatus != "" && p.Body == "" && p.ButtonPayload == "" && p.NumMedia == ""
}

// SenderID strips the channel prefix and plus sign so ids match the Cloud API form.
func SenderID(from string) string {
	from = strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
	return strings.TrimPrefix(from, "+")
}

// NormalizeTwilio converts a Twilio form into an InboundMessage.
func (g *Gate) NormalizeTwilio(p TwilioPayload) (models.InboundMessage, error) {
	now := g.now()
	if p.From == "" || p.MessageSid == "" {
		return models.InboundMessage{}, &ValidationError{Field: "message", Reason: "missing From or MessageSid"}
	}

	msg := models.InboundMessage{
		SenderID:    SenderID(p.From),
		MessageID:   p.MessageSid,
		Type:        models.MessageTypeText,
		ContactName: p.ProfileName,
		SentAt:      now,
		ReceivedAt:  now,
	}

	switch {
	case p.ButtonPayload != "":
		msg.Type = models.MessageTypeButton
		msg.ActionCode = p.ButtonPayload
		msg.Text = p.ButtonText
	case p.Latitude != "" && p.Longitude != "":
		msg.Type = models.MessageTypeLocation
		msg.Text = fmt.Sprintf("Location: %s,%s", p.Latitude, p.Longitude)
	case p.NumMedia != "" && p.NumMedia != "0":
		msg.Type = mediaType(p.MediaContentType0)
		msg.Text = p.Body
		switch {
		case msg.Type == models.MessageTypeSticker:
			msg.Text = "[Sticker received]"
		case strings.TrimSpace(msg.Text) == "":
			msg.Text = fmt.Sprintf("[%s message received]", msg.Type)
		}
	default:
		msg.Text = p.Body
	}

	msg.Text = strings.TrimSpace(msg.Text)
	if n := utf8.RuneCountInString(msg.Text); g.cfg.MaxLength > 0 && n > g.cfg.MaxLength {
		return models.InboundMessage{}, &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("%d characters exceeds limit of %d", n, g.cfg.MaxLength),
		}
	}
	return msg, nil
}

func mediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/webp"):
		return models.MessageTypeSticker
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MessageTypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return models.MessageTypeAudio
	default:
		return models.MessageTypeDocument
	}
}
