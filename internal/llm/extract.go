package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// ExtractJSON unmarshals a JSON object from completion text. Direct
// unmarshaling is attempted first; responses wrapped in markdown code
// fences are unwrapped and retried.
func ExtractJSON(content string, v any) error {
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	matches := jsonBlockRegex.FindStringSubmatch(content)
	if len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if err := json.Unmarshal([]byte(cleaned), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not parse JSON from response")
}
