package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseClasses reads class probabilities out of free-form model output. The
// JSON may be wrapped in markdown fences or surrounded by prose, and may be
// either an array of {className, probability} or an object mapping class
// names to probabilities.
func parseClasses(raw string) ([]ClassProbability, error) {
	text := stripFences(raw)
	body, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	if strings.HasPrefix(body, "[") {
		var classes []ClassProbability
		if err := json.Unmarshal([]byte(body), &classes); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(body))
		}
		return classes, nil
	}

	var byName map[string]float64
	if err := json.Unmarshal([]byte(body), &byName); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(body))
	}
	classes := make([]ClassProbability, 0, len(byName))
	for name, p := range byName {
		classes = append(classes, ClassProbability{ClassName: name, Probability: p})
	}
	return classes, nil
}

// stripFences removes a ```json ... ``` wrapper if there is one.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// extractJSON returns the span from the first { or [ to the last matching
// closer.
func extractJSON(text string) (string, error) {
	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	if obj == -1 && arr == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	start, closer := obj, "}"
	if obj == -1 || (arr != -1 && arr < obj) {
		start, closer = arr, "]"
	}
	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return "", fmt.Errorf("no closing %s found", closer)
	}
	return text[:end+1], nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
