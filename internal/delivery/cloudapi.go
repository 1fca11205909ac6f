package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/models"
)

// Cloud API limits for interactive messages.
const (
	maxButtons     = 3
	maxButtonTitle = 20
	maxListRows    = 10
	maxRowTitle    = 24
)

// CloudAPIGateway posts to the WhatsApp Cloud API /{phone-number-id}/messages endpoint.
type CloudAPIGateway struct {
	endpoint string
	token    string
	timeout  time.Duration
	log      *zap.Logger
}

func NewCloudAPIGateway(graphURL, phoneNumberID, accessToken string, timeout time.Duration, log *zap.Logger) (*CloudAPIGateway, error) {
	if phoneNumberID == "" || accessToken == "" {
		return nil, errors.New("missing WhatsApp phone number id or access token")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CloudAPIGateway{
		endpoint: strings.TrimRight(graphURL, "/") + "/" + phoneNumberID + "/messages",
		token:    accessToken,
		timeout:  timeout,
		log:      log.Named("cloudapi"),
	}, nil
}

type cloudMessage struct {
	Product     string            `json:"messaging_product"`
	To          string            `json:"to"`
	Type        string            `json:"type"`
	Text        *cloudText        `json:"text,omitempty"`
	Image       *cloudImage       `json:"image,omitempty"`
	Interactive *cloudInteractive `json:"interactive,omitempty"`
	Template    *cloudTemplate    `json:"template,omitempty"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type cloudInteractive struct {
	Type   string      `json:"type"`
	Body   cloudText   `json:"body"`
	Action cloudAction `json:"action"`
}

type cloudAction struct {
	Buttons  []cloudButton  `json:"buttons,omitempty"`
	Button   string         `json:"button,omitempty"`
	Sections []cloudSection `json:"sections,omitempty"`
}

type cloudButton struct {
	Type  string     `json:"type"`
	Reply cloudReply `json:"reply"`
}

type cloudReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type cloudSection struct {
	Title string     `json:"title,omitempty"`
	Rows  []cloudRow `json:"rows"`
}

type cloudRow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type cloudTemplate struct {
	Name       string           `json:"name"`
	Language   cloudLanguage    `json:"language"`
	Components []cloudComponent `json:"components,omitempty"`
}

type cloudLanguage struct {
	Code string `json:"code"`
}

type cloudComponent struct {
	Type       string           `json:"type"`
	Parameters []cloudParameter `json:"parameters"`
}

type cloudParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts one message.
func (g *CloudAPIGateway) Send(ctx context.Context, p models.OutboundPayload) error {
	timeout := g.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	a := fiber.Post(g.endpoint)
	a.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	a.JSON(buildCloudMessage(p)).Timeout(timeout)

	var out cloudResponse
	code, body, errs := a.Struct(&out)
	if len(errs) > 0 {
		return fmt.Errorf("cloud api: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Errorf("cloud api: status %d: %s", code, body)
	}

	var id string
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	g.log.Debug("message sent", zap.String("to", p.Recipient), zap.String("wamid", id))
	return nil
}

func buildCloudMessage(p models.OutboundPayload) cloudMessage {
	msg := cloudMessage{Product: "whatsapp", To: p.Recipient}
	r := p.Response

	switch {
	case r.Type == models.ResponseTemplate && r.Template != nil:
		lang := r.Template.Language
		if lang == "" {
			lang = "en"
		}
		msg.Type = "template"
		msg.Template = &cloudTemplate{Name: r.Template.Name, Language: cloudLanguage{Code: lang}}
		if len(r.Template.Params) > 0 {
			comp := cloudComponent{Type: "body"}
			for _, v := range r.Template.Params {
				comp.Parameters = append(comp.Parameters, cloudParameter{Type: "text", Text: v})
			}
			msg.Template.Components = []cloudComponent{comp}
		}
	case r.Type == models.ResponseMedia && r.MediaURL != "":
		msg.Type = "image"
		msg.Image = &cloudImage{Link: r.MediaURL, Caption: r.Text}
	case len(r.Options) > 0 && len(r.Options) <= maxButtons:
		msg.Type = "interactive"
		in := &cloudInteractive{Type: "button", Body: cloudText{Body: r.Text}}
		for _, o := range r.Options {
			in.Action.Buttons = append(in.Action.Buttons, cloudButton{
				Type:  "reply",
				Reply: cloudReply{ID: o.Code, Title: truncate(o.Label, maxButtonTitle)},
			})
		}
		msg.Interactive = in
	case len(r.Options) > maxButtons:
		msg.Type = "interactive"
		in := &cloudInteractive{Type: "list", Body: cloudText{Body: r.Text}}
		in.Action.Button = "Options"
		section := cloudSection{}
		for i, o := range r.Options {
			if i == maxListRows {
				break
			}
			section.Rows = append(section.Rows, cloudRow{ID: o.Code, Title: truncate(o.Label, maxRowTitle)})
		}
		in.Action.Sections = []cloudSection{section}
		msg.Interactive = in
	default:
		msg.Type = "text"
		msg.Text = &cloudText{Body: p.Body}
	}
	return msg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
