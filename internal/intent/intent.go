// Package intent turns free-text chat messages into structured intents
// against an agent's function catalog. Parsing runs through an LLM when one
// is configured, with a deterministic keyword fallback; both paths feed the
// same mandatory authorization validation.
package intent

import (
	"github.com/contractmind/backend/internal/catalog"
)

// Fallback parses carry a fixed low confidence; LLM parses default to 0.5
// when the model reports none.
const (
	FallbackConfidence   = 0.3
	DefaultLLMConfidence = 0.5
)

// Turn is one prior conversation message supplied as parser context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParsedIntent is the parser's structured interpretation of one message.
type ParsedIntent struct {
	FunctionName        string         `json:"function_name,omitempty"`
	RequiresTransaction bool           `json:"requires_transaction"`
	Response            string         `json:"response"`
	Params              map[string]any `json:"params,omitempty"`
	NeedsMoreInfo       bool           `json:"needs_more_info,omitempty"`
	MissingParams       []string       `json:"missing_params,omitempty"`
	Confidence          float64        `json:"confidence"`

	// Display context carried through to transaction descriptions.
	Action string `json:"action,omitempty"`
	Amount string `json:"amount,omitempty"`
	Token  string `json:"token,omitempty"`
}

// Request carries everything the parser needs for one message.
type Request struct {
	Message     string
	UserAddress string
	AgentName   string
	Catalog     *catalog.Catalog
	History     []Turn
}
