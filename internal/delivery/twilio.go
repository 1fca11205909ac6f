// Package delivery holds the outbound gateways: Twilio, the WhatsApp Cloud
// API and a log-only gateway for development.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/models"
)

// messageCreator is the part of the Twilio REST API the gateway uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends WhatsApp messages through Twilio's Messages API.
type TwilioGateway struct {
	api  messageCreator
	from string
	log  *zap.Logger
}

// NewTwilioGateway creates a gateway. from is the sender, e.g. "whatsapp:+14155238886".
func NewTwilioGateway(accountSID, authToken, from string, log *zap.Logger) (*TwilioGateway, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("missing Twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioGateway(client.Api, from, log), nil
}

func newTwilioGateway(api messageCreator, from string, log *zap.Logger) *TwilioGateway {
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	return &TwilioGateway{api: api, from: from, log: log.Named("twilio")}
}

// Send maps the response onto CreateMessageParams. Templates use the
// approved ContentSid; interactive options go out as a numbered list.
func (t *TwilioGateway) Send(_ context.Context, p models.OutboundPayload) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(twilioAddress(p.Recipient))

	switch {
	case p.Response.Type == models.ResponseTemplate && p.Response.Template != nil && p.Response.Template.ContentID != "":
		params.SetContentSid(p.Response.Template.ContentID)
		if vars := contentVariables(p.Response.Template.Params); vars != "" {
			params.SetContentVariables(vars)
		}
	case p.Response.Type == models.ResponseMedia && p.Response.MediaURL != "":
		params.SetMediaUrl([]string{p.Response.MediaURL})
		if p.Response.Text != "" {
			params.SetBody(p.Response.Text)
		}
	default:
		params.SetBody(p.Body)
	}

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.Debug("message sent", zap.String("to", p.Recipient), zap.String("sid", sid))
	return nil
}

// twilioAddress turns 250788000001 into whatsapp:+250788000001.
func twilioAddress(recipient string) string {
	if strings.HasPrefix(recipient, "whatsapp:") {
		return recipient
	}
	return "whatsapp:+" + strings.TrimPrefix(recipient, "+")
}

// contentVariables encodes positional parameters as {"1": ..., "2": ...}.
func contentVariables(params []string) string {
	if len(params) == 0 {
		return ""
	}
	vars := make(map[string]string, len(params))
	for i, v := range params {
		vars[strconv.Itoa(i+1)] = v
	}
	data, _ := json.Marshal(vars)
	return string(data)
}
