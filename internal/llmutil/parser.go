// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array if the response is wrapped in markdown.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")

	// answerRegex picks the first word of a short free-text answer.
	answerRegex = regexp.MustCompile(`^[^a-z]*([a-z]+)`)
)

// ParseJSONResponse attempts to parse an LLM response string into a target Go type using generics.
// It handles common LLM formatting issues, such as wrapping the JSON in markdown code blocks.
func ParseJSONResponse[T any](response string) (*T, error) {
	jsonStringToParse := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(jsonStringToParse), &result); err != nil {
		// Provide a detailed error message including the extracted JSON snippet.
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(jsonStringToParse, 500))
	}

	return &result, nil
}

// ExtractJSON returns the JSON object or array embedded in an LLM response,
// or the trimmed response itself when no structure can be located.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Heuristically determine if the content is likely an object or array.
	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	// 1. Handle markdown wrapping (most common case).
	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			return matches[1]
		}
		return response
	}

	if !(isObject || isArray) || strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// 2. Attempt to find the structure within conversational text.
	if isObject {
		fb := strings.Index(response, "{")
		lb := strings.LastIndex(response, "}")
		if fb != -1 && lb > fb {
			return response[fb : lb+1]
		}
	}
	if isArray {
		fb := strings.Index(response, "[")
		lb := strings.LastIndex(response, "]")
		if fb != -1 && lb > fb {
			return response[fb : lb+1]
		}
	}
	return response
}

// Answer is a parsed yes/no reply.
type Answer int

const (
	AnswerUnrecognized Answer = iota
	AnswerYes
	AnswerNo
	AnswerUnsure
)

// ParseYesNo reads a short yes/no reply such as "y", "No.", or "**yes**".
func ParseYesNo(response string) Answer {
	m := answerRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(response)))
	if len(m) < 2 {
		return AnswerUnrecognized
	}
	switch m[1] {
	case "y", "yes", "true", "visible":
		return AnswerYes
	case "n", "no", "false", "not":
		return AnswerNo
	case "u", "unsure", "unknown", "unclear", "maybe":
		return AnswerUnsure
	default:
		return AnswerUnrecognized
	}
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
