package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry within a transcript. It contains the participant's role, the
// ordered parts produced for that entry, and the time it was created. An assistant message grows while
// its stream is in flight and is marked Final once the stream ends.
type Message struct {
	ID        string
	Role      Role
	Parts     []Part
	Timestamp time.Time

	// Final is set when the stream that produced this message has ended. A final message is never
	// mutated again.
	Final bool
}

// Part is a typed fragment of a message.
type Part struct {
	Type PartType

	// Text would be filled if Type is PartTypeText.
	Text string

	// Details would be filled if Type is PartTypeReasoning.
	Details []ReasoningDetail
}

// ReasoningDetail is one fragment of a reasoning part. Redacted details carry no text and are
// rendered as a placeholder.
type ReasoningDetail struct {
	Type DetailType
	Text string
}

// Role represents the role of a message participant.
type Role string

// PartType represents the type of a message part.
type PartType string

// DetailType represents the type of a reasoning detail.
type DetailType string

const (
	// RoleUser represents a user message. A message with this role only contains a single text part.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message. A message with this role may contain text parts
	// and reasoning parts.
	RoleAssistant Role = "assistant"

	// PartTypeText represents final-answer text.
	PartTypeText PartType = "text"
	// PartTypeReasoning represents reasoning emitted before or alongside the answer.
	PartTypeReasoning PartType = "reasoning"

	// DetailTypeText is a plain text reasoning fragment.
	DetailTypeText DetailType = "text"
	// DetailTypeRedacted is a reasoning fragment the upstream chose not to reveal.
	DetailTypeRedacted DetailType = "redacted"
)

// Text returns the concatenation of all text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Reasoning returns the concatenation of all plain reasoning details of the message.
func (m Message) Reasoning() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartTypeReasoning {
			continue
		}
		for _, d := range p.Details {
			if d.Type == DetailTypeText {
				sb.WriteString(d.Text)
			}
		}
	}
	return sb.String()
}

// Len returns the total length of the message content, counting text, reasoning text and one unit per
// redacted detail. It never decreases while a message is being streamed.
func (m Message) Len() int {
	n := 0
	for _, p := range m.Parts {
		n += len(p.Text)
		for _, d := range p.Details {
			if d.Type == DetailTypeRedacted {
				n++
				continue
			}
			n += len(d.Text)
		}
	}
	return n
}

func (m Message) clone() Message {
	parts := make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = p
		if p.Details != nil {
			parts[i].Details = append([]ReasoningDetail(nil), p.Details...)
		}
	}
	m.Parts = parts
	return m
}

// Transcript is the ordered, append-only sequence of messages of one chat session. Insertion order is
// conversation order. A Transcript is not safe for concurrent use; its owner serializes access.
type Transcript struct {
	messages []Message
}

// Messages returns a copy of all messages in conversation order.
func (t *Transcript) Messages() []Message {
	msgs := make([]Message, len(t.messages))
	for i, m := range t.messages {
		msgs[i] = m.clone()
	}
	return msgs
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns a copy of the last message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].clone(), true
}

// AppendUser appends a final user message holding text.
func (t *Transcript) AppendUser(text string) Message {
	m := Message{
		ID:   uuid.New().String(),
		Role: RoleUser,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
		Timestamp: time.Now(),
		Final:     true,
	}
	t.messages = append(t.messages, m)
	return m.clone()
}

// AppendAssistant appends an empty assistant message that subsequent deltas grow.
func (t *Transcript) AppendAssistant() Message {
	m := Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
	t.messages = append(t.messages, m)
	return m.clone()
}

// AppendText appends an answer delta to the streaming assistant message. See appendDelta.
func (t *Transcript) AppendText(text string) Message {
	return t.appendDelta(func(m *Message) {
		if n := len(m.Parts); n > 0 && m.Parts[n-1].Type == PartTypeText {
			m.Parts[n-1].Text += text
			return
		}
		m.Parts = append(m.Parts, Part{Type: PartTypeText, Text: text})
	})
}

// AppendReasoning appends a reasoning delta to the streaming assistant message. A redacted delta adds a
// placeholder detail and ignores text. See appendDelta.
func (t *Transcript) AppendReasoning(text string, redacted bool) Message {
	return t.appendDelta(func(m *Message) {
		n := len(m.Parts)
		if n == 0 || m.Parts[n-1].Type != PartTypeReasoning {
			m.Parts = append(m.Parts, Part{Type: PartTypeReasoning})
			n++
		}
		p := &m.Parts[n-1]

		if redacted {
			p.Details = append(p.Details, ReasoningDetail{Type: DetailTypeRedacted})
			return
		}
		if d := len(p.Details); d > 0 && p.Details[d-1].Type == DetailTypeText {
			p.Details[d-1].Text += text
			return
		}
		p.Details = append(p.Details, ReasoningDetail{Type: DetailTypeText, Text: text})
	})
}

// appendDelta applies grow to the last message if and only if it is a non-final assistant message.
// Otherwise a new assistant message holding just the delta is appended.
func (t *Transcript) appendDelta(grow func(m *Message)) Message {
	if n := len(t.messages); n > 0 {
		last := &t.messages[n-1]
		if last.Role == RoleAssistant && !last.Final {
			grow(last)
			return last.clone()
		}
	}

	t.AppendAssistant()
	last := &t.messages[len(t.messages)-1]
	grow(last)
	return last.clone()
}

// Finish marks the last message as final if it is a streaming assistant message, and reports whether it
// did so.
func (t *Transcript) Finish() bool {
	n := len(t.messages)
	if n == 0 {
		return false
	}
	last := &t.messages[n-1]
	if last.Role != RoleAssistant || last.Final {
		return false
	}
	last.Final = true
	return true
}

// ChatMessages converts the transcript into the wire history sent upstream. Only text parts are carried,
// and assistant messages without text are skipped.
func (t *Transcript) ChatMessages() []ChatMessage {
	msgs := make([]ChatMessage, 0, len(t.messages))
	for _, m := range t.messages {
		text := m.Text()
		if m.Role == RoleAssistant && text == "" {
			continue
		}
		msgs = append(msgs, ChatMessage{
			Role:    string(m.Role),
			Content: text,
		})
	}
	return msgs
}
