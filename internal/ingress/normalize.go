package ingress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ikanisa/easymo-router/internal/models"
)

// normalize flattens one Cloud API message into an InboundMessage.
func normalize(msg waMessage, contactName string, maxLen int, receivedAt time.Time) (models.InboundMessage, error) {
	if msg.From == "" || msg.ID == "" {
		return models.InboundMessage{}, &ValidationError{Field: "message", Reason: "missing sender or id"}
	}

	out := models.InboundMessage{
		SenderID:    msg.From,
		MessageID:   msg.ID,
		Type:        msg.Type,
		ContactName: contactName,
		SentAt:      parseUnix(msg.Timestamp, receivedAt),
		ReceivedAt:  receivedAt,
	}

	text, action, err := extractText(msg)
	if err != nil {
		return models.InboundMessage{}, err
	}
	text = strings.TrimSpace(text)
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		return models.InboundMessage{}, &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("%d characters exceeds limit of %d", utf8.RuneCountInString(text), maxLen),
		}
	}
	out.Text = text
	out.ActionCode = action
	return out, nil
}

func extractText(msg waMessage) (text, action string, err error) {
	if len(msg.Errors) > 0 {
		return "[Unsupported message] " + msg.Errors[0].Title, "", nil
	}

	switch msg.Type {
	case models.MessageTypeText:
		if msg.Text == nil {
			return "", "", &ValidationError{Field: "text", Reason: "missing body"}
		}
		var body string
		if err := json.Unmarshal(msg.Text.Body, &body); err != nil {
			return "", "", &ValidationError{Field: "text", Reason: "body is not a string"}
		}
		return body, "", nil

	case models.MessageTypeReaction:
		if msg.Reaction != nil {
			return "Reaction: " + msg.Reaction.Emoji, "", nil
		}

	case models.MessageTypeInteractive:
		if r := msg.Interactive; r != nil {
			if r.ButtonReply != nil {
				return r.ButtonReply.Title, r.ButtonReply.ID, nil
			}
			if r.ListReply != nil {
				return r.ListReply.Title, r.ListReply.ID, nil
			}
		}

	case models.MessageTypeButton:
		if msg.Button != nil {
			return msg.Button.Text, msg.Button.Payload, nil
		}

	case models.MessageTypeSticker:
		return "[Sticker received]", "", nil

	case models.MessageTypeLocation:
		if l := msg.Location; l != nil {
			label := strings.TrimSpace(l.Name + " " + l.Address)
			if label == "" {
				label = fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude)
			}
			return "Location: " + label, "", nil
		}

	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeDocument, models.MessageTypeAudio:
		if m := mediaOf(msg); m != nil && strings.TrimSpace(m.Caption) != "" {
			return m.Caption, "", nil
		}
	}
	return fmt.Sprintf("[%s message received]", msg.Type), "", nil
}

func mediaOf(msg waMessage) *waMedia {
	switch msg.Type {
	case models.MessageTypeImage:
		return msg.Image
	case models.MessageTypeVideo:
		return msg.Video
	case models.MessageTypeDocument:
		return msg.Document
	case models.MessageTypeAudio:
		return msg.Audio
	}
	return nil
}

func parseUnix(ts string, fallback time.Time) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}
