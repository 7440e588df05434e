package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnehmos/questforge/internal/rpgerr"
)

// Envelope is the wire response: a list of content blocks. The engine
// only emits text blocks; machine-readable state rides inside the text
// as a delimited block so downstream parsers can recover it without
// re-parsing prose.
type Envelope struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one piece of envelope content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	stateOpen  = "<!-- STATE_JSON"
	stateClose = "STATE_JSON -->"
)

// EmbedState appends the delimited machine block to a text body.
func EmbedState(text string, state any) string {
	if state == nil {
		return text
	}
	raw, err := json.Marshal(state)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error":true,"kind":"storage_error","message":"state encoding failed: %v"}`, err))
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", text, stateOpen, raw, stateClose)
}

// ExtractState recovers the embedded machine block from envelope text.
// Returns nil when no block is present.
func ExtractState(text string) json.RawMessage {
	start := strings.Index(text, stateOpen)
	if start < 0 {
		return nil
	}
	rest := text[start+len(stateOpen):]
	end := strings.Index(rest, stateClose)
	if end < 0 {
		return nil
	}
	return json.RawMessage(strings.TrimSpace(rest[:end]))
}

func resultEnvelope(res *Result) *Envelope {
	text := res.Text
	if res.State != nil {
		text = EmbedState(text, res.State)
	}
	return &Envelope{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorEnvelope(err error) *Envelope {
	payload := rpgerr.PayloadFor(err)
	text := fmt.Sprintf("The request failed: %s.\n\n%s\n%s\n%s",
		payload.Message, stateOpen, payload.JSON(), stateClose)
	return &Envelope{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

