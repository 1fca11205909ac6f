package ingress

import "encoding/json"

// Cloud API webhook payload. Only the fields the router reads are declared.
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []waContact      `json:"contacts"`
	Messages         []waMessage      `json:"messages"`
	Statuses         []waStatus       `json:"statuses"`
	Metadata         *webhookMetadata `json:"metadata,omitempty"`
}

type webhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type waContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type waMessage struct {
	From        string         `json:"from"`
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Type        string         `json:"type"`
	Text        *waText        `json:"text,omitempty"`
	Reaction    *waReaction    `json:"reaction,omitempty"`
	Image       *waMedia       `json:"image,omitempty"`
	Video       *waMedia       `json:"video,omitempty"`
	Document    *waMedia       `json:"document,omitempty"`
	Audio       *waMedia       `json:"audio,omitempty"`
	Sticker     *waMedia       `json:"sticker,omitempty"`
	Location    *waLocation    `json:"location,omitempty"`
	Interactive *waInteractive `json:"interactive,omitempty"`
	Button      *waButton      `json:"button,omitempty"`
	Errors      []waError      `json:"errors,omitempty"`
}

type waText struct {
	// Body stays raw so a non-string body can be rejected.
	Body json.RawMessage `json:"body"`
}

type waReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type waLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

type waInteractive struct {
	Type        string   `json:"type"`
	ButtonReply *waReply `json:"button_reply,omitempty"`
	ListReply   *waReply `json:"list_reply,omitempty"`
}

type waReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type waButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type waError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
