package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contractmind/backend/internal/catalog"
	"github.com/contractmind/backend/internal/llm"
)

// Parser resolves chat messages into intents. When no LLM client is
// configured it runs keyword matching only.
type Parser struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewParser creates an intent parser. client may be nil.
func NewParser(client llm.Client, logger *slog.Logger) *Parser {
	return &Parser{
		llm:    client,
		logger: logger.With("system", "intent"),
	}
}

// Parse interprets one message against the agent's catalog. The result is
// always usable: LLM failures degrade to the keyword fallback, and both
// paths pass through authorization validation and parameter coercion.
func (p *Parser) Parse(ctx context.Context, req Request) ParsedIntent {
	if req.Catalog == nil || req.Catalog.Empty() {
		return ParsedIntent{
			Response: "Sorry, I don't have access to the contract's functions. Please make sure the agent has a valid ABI configured.",
		}
	}

	var parsed ParsedIntent
	if p.llm != nil {
		llmParsed, err := p.llmParse(ctx, req)
		if err != nil {
			p.logger.Warn("llm parse failed, using keyword fallback", "error", err)
			parsed = fallbackParse(req)
		} else {
			parsed = llmParsed
		}
	} else {
		parsed = fallbackParse(req)
	}

	p.validate(&parsed, req.Catalog)

	if parsed.FunctionName != "" {
		if fn, ok := req.Catalog.Lookup(parsed.FunctionName); ok {
			parsed.Params = Coerce(parsed.Params, fn.Inputs, req.UserAddress, p.logger)
		}
	}

	return parsed
}

// llmResponse is the JSON schema the model is instructed to return.
type llmResponse struct {
	FunctionName        *string        `json:"functionName"`
	RequiresTransaction bool           `json:"requiresTransaction"`
	Response            string         `json:"response"`
	Params              map[string]any `json:"params"`
	NeedsMoreInfo       bool           `json:"needsMoreInfo"`
	MissingParams       []string       `json:"missingParams"`
	Confidence          *float64       `json:"confidence"`
	Action              string         `json:"action"`
	Amount              string         `json:"amount"`
	Token               string         `json:"token"`
}

func (p *Parser) llmParse(ctx context.Context, req Request) (ParsedIntent, error) {
	content, err := p.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(req.AgentName, req.Catalog.Functions(), req.History)},
		{Role: llm.RoleUser, Content: userPrompt(req.Message, req.UserAddress)},
	})
	if err != nil {
		return ParsedIntent{}, err
	}

	var resp llmResponse
	if err := llm.ExtractJSON(content, &resp); err != nil {
		return ParsedIntent{}, fmt.Errorf("llm response: %w", err)
	}

	parsed := ParsedIntent{
		RequiresTransaction: resp.RequiresTransaction,
		Response:            resp.Response,
		Params:              resp.Params,
		NeedsMoreInfo:       resp.NeedsMoreInfo,
		MissingParams:       resp.MissingParams,
		Confidence:          DefaultLLMConfidence,
		Action:              resp.Action,
		Amount:              resp.Amount,
		Token:               resp.Token,
	}
	if resp.FunctionName != nil {
		parsed.FunctionName = *resp.FunctionName
	}
	if resp.Confidence != nil {
		parsed.Confidence = *resp.Confidence
	}
	if parsed.Action == "" {
		parsed.Action = parsed.FunctionName
	}
	return parsed, nil
}

// validate is the last line of defense against hallucinated calls: a named
// function must exist in the catalog and be authorized, regardless of which
// parsing path produced it.
func (p *Parser) validate(parsed *ParsedIntent, cat *catalog.Catalog) {
	if parsed.FunctionName == "" {
		return
	}

	fn, ok := cat.Lookup(parsed.FunctionName)
	if !ok {
		p.logger.Warn("parsed function not in catalog", "function", parsed.FunctionName)
		parsed.Response = fmt.Sprintf("Sorry, the function '%s' is not available on this contract.", parsed.FunctionName)
		parsed.FunctionName = ""
		parsed.RequiresTransaction = false
		return
	}

	if !fn.Authorized {
		p.logger.Warn("parsed function not authorized", "function", parsed.FunctionName)
		parsed.Response = fmt.Sprintf("Sorry, the function '%s' is not authorized for this agent. Please contact the agent owner to authorize it.", parsed.FunctionName)
		parsed.FunctionName = ""
		parsed.RequiresTransaction = false
	}
}

// MissingParams returns "name (type)" entries for required inputs absent
// from params.
func MissingParams(fn *catalog.Function, params map[string]any) []string {
	var missing []string
	for _, in := range fn.Inputs {
		if value, ok := params[in.Name]; !ok || value == nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", in.Name, in.Type))
		}
	}
	return missing
}

// MissingParamsPrompt renders the conversational ask for missing inputs.
func MissingParamsPrompt(missing []string) string {
	return fmt.Sprintf("I need the following parameters to proceed: %s. Could you provide them?", strings.Join(missing, ", "))
}
