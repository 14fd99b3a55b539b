// Package stream implements the line-oriented SSE wire protocol spoken between the chat proxy and its
// consumers. Every upstream chunk travels as one `data: <json>` event and the stream is terminated by a
// single `data: [DONE]` event.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/chat-playground/internal/models"
)

// Kind tags the variant of an Event.
type Kind int

const (
	// KindText is an incremental fragment of the final answer.
	KindText Kind = iota + 1
	// KindReasoning is an incremental fragment of the model's reasoning.
	KindReasoning
	// KindDone is the terminal sentinel.
	KindDone
	// KindMalformed is a data payload that could not be parsed.
	KindMalformed
)

// DoneSentinel is the data payload that terminates a stream.
const DoneSentinel = "[DONE]"

// Event is one decoded unit of the wire protocol.
type Event struct {
	Kind Kind

	// Text would be filled if Kind is KindText or KindReasoning.
	Text string
	// Redacted is set for reasoning fragments the upstream did not reveal.
	Redacted bool

	// Raw and Err would be filled if Kind is KindMalformed.
	Raw string
	Err error
}

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text-delta"
	case KindReasoning:
		return "reasoning-delta"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Parse decodes the payload of a single data line. It returns the done sentinel, a malformed event, or
// the deltas carried by the first choice of the chunk: reasoning deltas first, then the answer delta. A
// chunk without any delta text yields no events.
func Parse(data string) []Event {
	data = strings.TrimLeft(data, " \t")
	if strings.TrimSpace(data) == DoneSentinel {
		return []Event{{Kind: KindDone}}
	}

	var chunk models.Chunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return []Event{{Kind: KindMalformed, Raw: data, Err: err}}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	delta := chunk.Choices[0].Delta

	var events []Event
	if delta.ReasoningContent != "" {
		events = append(events, Event{Kind: KindReasoning, Text: delta.ReasoningContent})
	}
	for _, d := range delta.ReasoningDetails {
		switch d.Type {
		case models.ChunkReasoningText:
			if d.Text != "" {
				events = append(events, Event{Kind: KindReasoning, Text: d.Text})
			}
		case models.ChunkReasoningEncrypted, models.ChunkReasoningRedacted:
			events = append(events, Event{Kind: KindReasoning, Redacted: true})
		}
	}
	if delta.Content != "" {
		events = append(events, Event{Kind: KindText, Text: delta.Content})
	}
	return events
}
