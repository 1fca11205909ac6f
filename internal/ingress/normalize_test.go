package ingress

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMessage(t *testing.T, raw string) waMessage {
	t.Helper()
	var m waMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNormalizeMessageTypes(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name, raw, text, action string
	}{
		{"text", `{"from":"1","id":"a","type":"text","text":{"body":" hi "}}`, "hi", ""},
		{"reaction", `{"from":"1","id":"a","type":"reaction","reaction":{"message_id":"x","emoji":"👍"}}`, "Reaction: 👍", ""},
		{"captioned image", `{"from":"1","id":"a","type":"image","image":{"id":"m","caption":"my receipt"}}`, "my receipt", ""},
		{"bare image", `{"from":"1","id":"a","type":"image","image":{"id":"m"}}`, "[image message received]", ""},
		{"sticker", `{"from":"1","id":"a","type":"sticker","sticker":{"id":"s"}}`, "[Sticker received]", ""},
		{"button reply", `{"from":"1","id":"a","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"payments.confirm:abc","title":"Confirm"}}}`, "Confirm", "payments.confirm:abc"},
		{"list reply", `{"from":"1","id":"a","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"menu.transport","title":"Transport"}}}`, "Transport", "menu.transport"},
		{"template button", `{"from":"1","id":"a","type":"button","button":{"payload":"payments.get_paid","text":"Get paid"}}`, "Get paid", "payments.get_paid"},
		{"unsupported", `{"from":"1","id":"a","type":"unsupported","errors":[{"code":131051,"title":"Message type unknown"}]}`, "[Unsupported message] Message type unknown", ""},
		{"location", `{"from":"1","id":"a","type":"location","location":{"latitude":-1.95,"longitude":30.06,"name":"Kigali Heights"}}`, "Location: Kigali Heights", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := normalize(decodeMessage(t, tc.raw), "", 2000, now)
			require.NoError(t, err)
			assert.Equal(t, tc.text, msg.Text)
			assert.Equal(t, tc.action, msg.ActionCode)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	now := time.Now()
	_, err := normalize(decodeMessage(t, `{"from":"1","id":"a","type":"text","text":{"body":["x"]}}`), "", 2000, now)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	long := `{"from":"1","id":"a","type":"text","text":{"body":"` + strings.Repeat("é", 2001) + `"}}`
	_, err = normalize(decodeMessage(t, long), "", 2000, now)
	assert.ErrorAs(t, err, &ve)

	exact := `{"from":"1","id":"a","type":"text","text":{"body":"` + strings.Repeat("é", 2000) + `"}}`
	_, err = normalize(decodeMessage(t, exact), "", 2000, now)
	assert.NoError(t, err)

	_, err = normalize(decodeMessage(t, `{"id":"a","type":"text","text":{"body":"x"}}`), "", 2000, now)
	assert.ErrorAs(t, err, &ve)
}

func TestNormalizeTwilio(t *testing.T) {
	g, _, _ := newGate(t)

	msg, err := g.NormalizeTwilio(TwilioPayload{MessageSid: "SM1", From: "whatsapp:+250788000001", Body: "Get paid 500", ProfileName: "Eric"})
	require.NoError(t, err)
	assert.Equal(t, "250788000001", msg.SenderID)
	assert.Equal(t, "Get paid 500", msg.Text)
	assert.Equal(t, "Eric", msg.ContactName)

	msg, err = g.NormalizeTwilio(TwilioPayload{MessageSid: "SM2", From: "whatsapp:+250788000001", ButtonPayload: "menu.payments", ButtonText: "Payments"})
	require.NoError(t, err)
	assert.Equal(t, "menu.payments", msg.ActionCode)

	msg, err = g.NormalizeTwilio(TwilioPayload{MessageSid: "SM3", From: "whatsapp:+250788000001", NumMedia: "1", MediaContentType0: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "[image message received]", msg.Text)

	_, err = g.NormalizeTwilio(TwilioPayload{From: "whatsapp:+250788000001"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.True(t, TwilioPayload{MessageSid: "SM4", MessageStatus: "delivered"}.IsStatus())
}
