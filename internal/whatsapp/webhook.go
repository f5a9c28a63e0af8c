package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the channel-neutral shape of an inbound message.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindOther    Kind = "other"
)

// Incoming is one inbound participant message, decoupled from the Graph
// webhook wire format. A button tap arrives as KindText carrying the
// button's label.
type Incoming struct {
	From     string
	Kind     Kind
	Text     string
	MediaID  string
	Filename string
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From        string `json:"from"`
	Type        string `json:"type"`
	Text        *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Image *struct {
		ID string `json:"id"`
	} `json:"image"`
	Document *struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	} `json:"document"`
}

// ParseWebhook extracts inbound messages from a Graph webhook body.
// Status-only notifications (delivery receipts etc.) yield an empty slice,
// not an error.
func ParseWebhook(body []byte) ([]Incoming, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding webhook payload: %w", err)
	}

	var out []Incoming
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				out = append(out, normalize(msg))
			}
		}
	}
	return out, nil
}

func normalize(msg webhookMessage) Incoming {
	in := Incoming{From: msg.From, Kind: KindOther}

	switch {
	case msg.Interactive != nil && msg.Interactive.Type == "button_reply" && msg.Interactive.ButtonReply != nil:
		in.Kind = KindText
		in.Text = strings.TrimSpace(msg.Interactive.ButtonReply.Title)
	case msg.Text != nil:
		in.Kind = KindText
		in.Text = strings.TrimSpace(msg.Text.Body)
	case msg.Image != nil:
		in.Kind = KindImage
		in.MediaID = msg.Image.ID
	case msg.Document != nil:
		in.Kind = KindDocument
		in.MediaID = msg.Document.ID
		in.Filename = msg.Document.Filename
	}
	return in
}
