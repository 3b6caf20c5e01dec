package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLooseJSON unmarshals model output that may be wrapped in markdown
// code fences. Models asked for "only JSON" still often reply with
// ```json ... ``` blocks; this is the single tolerant parse stage for all
// structured-output call sites. Anything that still fails to parse is
// treated by callers as "no structured data".
func DecodeLooseJSON(s string, v any) error {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return fmt.Errorf("empty output")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("loose json: %w", err)
	}
	return nil
}

// Sentiment is the structured answer to the sentiment/topic side-channel
// prompt.
type Sentiment struct {
	Sentiment string   `json:"sentiment"`
	Topics    []string `json:"topics"`
}

// ParseSentiment decodes a sentiment analysis reply.
func ParseSentiment(s string) (Sentiment, error) {
	var out Sentiment
	if err := DecodeLooseJSON(s, &out); err != nil {
		return Sentiment{}, err
	}
	return out, nil
}

// Facts is the structured answer to the fact-extraction prompt.
type Facts struct {
	Facts []string `json:"facts"`
}

// ParseFacts decodes a fact-extraction reply.
func ParseFacts(s string) (Facts, error) {
	var out Facts
	if err := DecodeLooseJSON(s, &out); err != nil {
		return Facts{}, err
	}
	return out, nil
}

// TriviaQuestion is the structured answer to the trivia prompt.
type TriviaQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ParseTrivia decodes a trivia question reply.
func ParseTrivia(s string) (TriviaQuestion, error) {
	var out TriviaQuestion
	if err := DecodeLooseJSON(s, &out); err != nil {
		return TriviaQuestion{}, err
	}
	return out, nil
}
