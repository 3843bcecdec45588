// Package ai asks vision language models for the orientation of photos in
// which no face could be detected.
package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-orienter/internal/orienter"
)

//go:embed prompts/orientation.txt
var orientationPrompt string

const (
	// maxRetries bounds the attempts to get a parseable answer
	maxRetries = 3

	defaultMaxImageSize = 800
)

// OrientationGuess is the JSON answer expected from the model.
type OrientationGuess struct {
	Orientation string `json:"orientation"`
	Reasoning   string `json:"reasoning"`
}

// Usage tracks token usage across requests.
type Usage struct {
	Requests     int
	InputTokens  int
	OutputTokens int
}

// usageTracker is shared by the providers; the web server calls them concurrently.
type usageTracker struct {
	mu    sync.Mutex
	usage Usage
}

func (u *usageTracker) track(inputTokens, outputTokens int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.Requests++
	u.usage.InputTokens += int(inputTokens)
	u.usage.OutputTokens += int(outputTokens)
}

// GetUsage returns a snapshot of the accumulated usage.
func (u *usageTracker) GetUsage() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}

func (u *usageTracker) ResetUsage() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage = Usage{}
}

// parseGuess validates a model answer and returns its orientation label.
func parseGuess(content string) (string, error) {
	var guess OrientationGuess
	if err := json.Unmarshal([]byte(content), &guess); err != nil {
		return "", err
	}
	o, err := orienter.ParseOrientation(guess.Orientation)
	if err != nil {
		return "", fmt.Errorf("invalid orientation field: %w", err)
	}
	return o.String(), nil
}

// retryMessage is sent back to the model after an unusable answer.
func retryMessage(err error) string {
	return fmt.Sprintf("Invalid answer: %v. Respond with JSON only, e.g. {\"orientation\": \"down\", \"reasoning\": \"...\"}, where orientation is one of down, right, up or left.", err)
}
