package intent

import (
	"fmt"
	"strings"

	"github.com/contractmind/backend/internal/catalog"
)

func renderFunctions(functions []catalog.Function) string {
	var b strings.Builder
	for _, fn := range functions {
		inputs := make([]string, len(fn.Inputs))
		for i, in := range fn.Inputs {
			inputs[i] = fmt.Sprintf("%s: %s", in.Name, in.Type)
		}

		auth := "not authorized"
		if fn.Authorized {
			auth = "authorized"
		}

		fmt.Fprintf(&b, "- %s(%s) [%s] %s\n",
			fn.Name, strings.Join(inputs, ", "), fn.StateMutability, auth)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nRecent conversation:\n")
	for _, turn := range history {
		role := "Assistant"
		if turn.Role == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}
	b.WriteString("\nIMPORTANT: If the user is providing information in response to your previous question, maintain the context and use that information to complete the previous intent.")
	return b.String()
}

func systemPrompt(agentName string, functions []catalog.Function, history []Turn) string {
	return fmt.Sprintf(`You are %s, a friendly AI assistant for a smart contract.

Your role:
1. Handle greetings and casual conversation naturally
2. Answer questions about the contract
3. Map user requests to contract functions when appropriate
4. Extract function parameters from the user's message
5. Ask for missing required parameters conversationally
6. Maintain conversation context - if you asked for parameters, remember what function you were working with

Available contract functions:
%s%s

Rules:
- Be friendly and conversational for greetings (hello, hi, thanks, etc.)
- For contract function requests, identify the function name
- Extract parameter values from the user's message when possible
- If parameters are missing, set needsMoreInfo=true and ask for them naturally
- If you just asked for parameters and user provides them, use the SAME function from context
- If ALL required parameters are provided, DO NOT ask for confirmation - just prepare the transaction
- Only suggest functions that are authorized
- Explain if a function is not authorized
- For view/pure functions, no transaction is needed
- For other functions, a transaction will be required

Parameter extraction rules:
- For address parameters: "me", "my", "I", "myself" mean the user's address from context; otherwise extract the actual address (0x...)
- For amount/uint256 parameters: extract the numeric value as a string number without decimals (the backend handles base-unit conversion)
- For string parameters: extract as-is

Respond with JSON:
{
  "functionName": "function name or null",
  "requiresTransaction": true or false,
  "response": "your natural response message",
  "params": {"param1": "actual value"},
  "needsMoreInfo": false,
  "missingParams": ["param1"],
  "confidence": 0.9
}`, agentName, renderFunctions(functions), renderHistory(history))
}

func userPrompt(message, userAddress string) string {
	return fmt.Sprintf("User message: %s\nUser address: %s", message, userAddress)
}
