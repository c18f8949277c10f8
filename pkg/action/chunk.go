package action

import "github.com/worldforge/server/pkg/quest"

// Chunk is a closed interface over the values Process yields: narrative
// tokens, followed by exactly one terminal Result, Denied, or Error,
// mirroring the llmgateway.Chunk stream-union design.
type Chunk interface {
	actionChunkType() string
}

// NarrativeChunk is one narrative token/fragment relayed to the client as
// a typewriter stream.
type NarrativeChunk struct {
	Content string
}

func (NarrativeChunk) actionChunkType() string { return "narrative" }

// ResultChunk is the terminal success record: the full narrative, the
// applied updates, and any quest progress.
type ResultChunk struct {
	Response string
	Updates  map[string]any
	Quest    *quest.ProgressResult
}

func (ResultChunk) actionChunkType() string { return "result" }

// DeniedChunk terminates the stream when the action is refused before
// narration: by the rate limiter (nothing is persisted), or by the
// equipment pre-check with Message "equipment_required" (the action
// record has already been saved). No narrative is produced.
type DeniedChunk struct {
	RateLimitInfo RateLimitInfo
	Message       string
	Suggestion    string
}

func (DeniedChunk) actionChunkType() string { return "denied" }

// ErrorChunk terminates the stream on an unrecoverable pipeline failure.
type ErrorChunk struct {
	Err error
}

func (ErrorChunk) actionChunkType() string { return "error" }
