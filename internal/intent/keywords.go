package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/contractmind/backend/internal/catalog"
)

var (
	greetingKeywords = []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"}
	thanksKeywords   = []string{"thank", "thanks", "appreciate"}
	helpKeywords     = []string{"help", "what can you do", "capabilities", "features"}
)

type keywordMapping struct {
	keyword  string
	function string
}

// Keyword tables are ordered slices: the first matching entry wins, which
// makes the tie-break deterministic when a message matches several keywords.
var viewKeywords = []keywordMapping{
	{"balance", "balanceOf"},
	{"allowance", "allowance"},
	{"total supply", "totalSupply"},
	{"decimals", "decimals"},
	{"name", "name"},
	{"symbol", "symbol"},
	{"owner", "owner"},
}

var txKeywords = []keywordMapping{
	{"transfer", "transfer"},
	{"send", "transfer"},
	{"approve", "approve"},
	{"mint", "mint"},
	{"stake", "stake"},
	{"withdraw", "withdraw"},
	{"swap", "swap"},
}

var amountTokenPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([A-Z]{3,})`)

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func functionNames(functions []catalog.Function, limit int) string {
	names := make([]string, 0, limit)
	for _, fn := range functions {
		if len(names) == limit {
			break
		}
		names = append(names, fn.Name)
	}
	return strings.Join(names, ", ")
}

// fallbackParse is the deterministic keyword matcher used when no LLM is
// configured or the LLM path fails.
func fallbackParse(req Request) ParsedIntent {
	messageLower := strings.ToLower(req.Message)
	functions := req.Catalog.Functions()

	if containsAny(messageLower, greetingKeywords) {
		return ParsedIntent{
			Response: fmt.Sprintf(
				"Hello! I'm %s, your AI assistant for interacting with smart contracts. I can help you with: %s. Just ask me in natural language!",
				req.AgentName, functionNames(functions, 8)),
			Confidence: FallbackConfidence,
		}
	}

	if containsAny(messageLower, thanksKeywords) {
		return ParsedIntent{
			Response:   "You're welcome! Let me know if you need anything else.",
			Confidence: FallbackConfidence,
		}
	}

	if containsAny(messageLower, helpKeywords) {
		return ParsedIntent{
			Response: fmt.Sprintf(
				"I can help you interact with this smart contract. Available functions: %s. Try asking things like 'What is my balance?' or 'Transfer tokens'.",
				functionNames(functions, 8)),
			Confidence: FallbackConfidence,
		}
	}

	amount, token := extractAmountToken(req.Message)

	for _, m := range viewKeywords {
		if !strings.Contains(messageLower, m.keyword) {
			continue
		}
		if _, ok := req.Catalog.Lookup(m.function); !ok {
			continue
		}
		return ParsedIntent{
			FunctionName: m.function,
			Response:     fmt.Sprintf("I'll check the %s for you.", m.function),
			Confidence:   FallbackConfidence,
			Action:       m.function,
		}
	}

	for _, m := range txKeywords {
		if !strings.Contains(messageLower, m.keyword) {
			continue
		}
		fn, ok := req.Catalog.Lookup(m.function)
		if !ok {
			continue
		}
		if fn.IsReadOnly() {
			return ParsedIntent{
				FunctionName: m.function,
				Response:     fmt.Sprintf("I'll query the %s function for you.", m.function),
				Confidence:   FallbackConfidence,
				Action:       m.function,
			}
		}
		return ParsedIntent{
			FunctionName:        m.function,
			RequiresTransaction: true,
			Response:            fmt.Sprintf("I'll prepare a transaction to call %s.", m.function),
			Confidence:          FallbackConfidence,
			Action:              m.function,
			Amount:              amount,
			Token:               token,
			Params:              extractParams(fn, amount),
		}
	}

	return ParsedIntent{
		Response: fmt.Sprintf(
			"I'm not sure how to help with that. I can assist with: %s. What would you like to do?",
			functionNames(functions, 5)),
		Confidence: FallbackConfidence,
	}
}

func extractAmountToken(message string) (string, string) {
	match := amountTokenPattern.FindStringSubmatch(message)
	if match == nil {
		return "", ""
	}
	return match[1], match[2]
}

// extractParams fills the one shape the keyword path can resolve on its own:
// a function taking a single numeric amount. Anything richer is left empty
// so the missing-parameter check asks the user instead of guessing.
func extractParams(fn *catalog.Function, amount string) map[string]any {
	if len(fn.Inputs) != 1 || amount == "" {
		return nil
	}
	if !strings.HasPrefix(fn.Inputs[0].Type, "uint") {
		return nil
	}
	return map[string]any{fn.Inputs[0].Name: amount}
}
