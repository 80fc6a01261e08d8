package core

// Chunk is one unit of streamed response text delivered to the transport
// boundary. Exactly one chunk per successful turn has Done set, it carries
// empty text and is always the last chunk. Failed or cancelled turns emit no
// Done chunk.
type Chunk struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// TextChunk wraps a fragment of generated text.
func TextChunk(text string) Chunk { return Chunk{Text: text} }

// DoneChunk is the stream terminator.
func DoneChunk() Chunk { return Chunk{Done: true} }
