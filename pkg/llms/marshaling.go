package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Part type discriminators used in the JSON form of a Message
const (
	partTypeText         = "text"
	partTypeToolCall     = "tool_call"
	partTypeToolResponse = "tool_response"
)

// messageJSON is the JSON form of a Message.
// A message with a single text part is written with Text only.
type messageJSON struct {
	Role  Role              `json:"role"`
	Text  *string           `json:"text,omitempty"`
	Parts []json.RawMessage `json:"parts,omitempty"`
}

type partTypeJSON struct {
	Type string `json:"type"`
}

// MarshalJSON implements json.Marshaler for Message
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 1 {
		if tp, ok := m.Parts[0].(TextContent); ok {
			return json.Marshal(messageJSON{
				Role: m.Role,
				Text: &tp.Text,
			})
		}
	}

	res := messageJSON{
		Role:  m.Role,
		Parts: make([]json.RawMessage, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		bs, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal content part")
		}
		res.Parts = append(res.Parts, bs)
	}
	return json.Marshal(res)
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var v messageJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "invalid message")
	}

	m.Role = v.Role
	m.Parts = nil

	if v.Text != nil {
		m.Parts = []ContentPart{TextContent{Text: *v.Text}}
		return nil
	}

	m.Parts = make([]ContentPart, 0, len(v.Parts))
	for _, raw := range v.Parts {
		part, err := unmarshalContentPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func unmarshalContentPart(raw json.RawMessage) (ContentPart, error) {
	var pt partTypeJSON
	if err := json.Unmarshal(raw, &pt); err != nil {
		return nil, errors.Wrap(err, "invalid content part")
	}

	switch pt.Type {
	case partTypeText:
		var p TextContent
		err := json.Unmarshal(raw, &p)
		return p, err
	case partTypeToolCall:
		var p ToolCall
		err := json.Unmarshal(raw, &p)
		return p, err
	case partTypeToolResponse:
		var p ToolCallResponse
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, errors.Newf("unknown content type: '%s'", pt.Type)
	}
}

type textContentJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MarshalJSON implements json.Marshaler for TextContent
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(textContentJSON{
		Type: partTypeText,
		Text: tc.Text,
	})
}

// UnmarshalJSON implements json.Unmarshaler for TextContent
func (tc *TextContent) UnmarshalJSON(data []byte) error {
	var v textContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != partTypeText {
		return errors.Newf("invalid type for TextContent: %v", v.Type)
	}
	tc.Text = v.Text
	return nil
}

type toolCallJSON struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

type toolCallContentJSON struct {
	Type     string       `json:"type"`
	ToolCall toolCallJSON `json:"tool_call"`
}

// MarshalJSON implements json.Marshaler for ToolCall
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolCallContentJSON{
		Type: partTypeToolCall,
		ToolCall: toolCallJSON{
			ID:           tc.ID,
			Type:         tc.Type,
			FunctionCall: tc.FunctionCall,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCall
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var v toolCallContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != partTypeToolCall {
		return errors.Newf("invalid type for ToolCall: %v", v.Type)
	}
	if v.ToolCall.ID == "" {
		return errors.New("missing id field in ToolCall")
	}
	tc.ID = v.ToolCall.ID
	tc.Type = v.ToolCall.Type
	tc.FunctionCall = v.ToolCall.FunctionCall
	return nil
}

type toolResponseJSON struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

type toolResponseContentJSON struct {
	Type         string           `json:"type"`
	ToolResponse toolResponseJSON `json:"tool_response"`
}

// MarshalJSON implements json.Marshaler for ToolCallResponse
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolResponseContentJSON{
		Type: partTypeToolResponse,
		ToolResponse: toolResponseJSON{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
			Content:    tc.Content,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCallResponse
func (tc *ToolCallResponse) UnmarshalJSON(data []byte) error {
	var v toolResponseContentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != partTypeToolResponse {
		return errors.Newf("invalid type for ToolCallResponse: %v", v.Type)
	}
	if v.ToolResponse.ToolCallID == "" {
		return errors.New("missing tool_call_id field in ToolCallResponse")
	}
	tc.ToolCallID = v.ToolResponse.ToolCallID
	tc.Name = v.ToolResponse.Name
	tc.Content = v.ToolResponse.Content
	return nil
}
