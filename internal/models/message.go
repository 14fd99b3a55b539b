package models

// ChatMessage is a role-tagged turn as it travels between the consumer, the proxy and the upstream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body accepted by the proxy. Either Messages or Prompt is set; a Prompt is wrapped
// as a single user message.
type ChatRequest struct {
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`
}

// Chunk is one OpenAI-compatible streaming completion chunk.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is a single choice of a Chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason,omitempty"`
}

// ChunkDelta carries the incremental content of a choice. ReasoningContent and ReasoningDetails are
// only sent by reasoning models.
type ChunkDelta struct {
	Role             string                 `json:"role,omitempty"`
	Content          string                 `json:"content,omitempty"`
	ReasoningContent string                 `json:"reasoning_content,omitempty"`
	ReasoningDetails []ChunkReasoningDetail `json:"reasoning_details,omitempty"`
}

// ChunkReasoningDetail is one structured reasoning fragment of a delta.
type ChunkReasoningDetail struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// Reasoning detail types as sent on the wire.
const (
	ChunkReasoningText      = "reasoning.text"
	ChunkReasoningEncrypted = "reasoning.encrypted"
	ChunkReasoningRedacted  = "reasoning.redacted"
)

// Model is a selectable language model as returned by the model listing endpoint.
type Model struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
