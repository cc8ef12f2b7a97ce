package llm

import (
	"context"
	"fmt"
)

// Summarize writes a short narrative over the problem digest of a day's entries.
func (c *Client) Summarize(ctx context.Context, digest string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	system, err := c.prompts.render(promptSummary, promptData{Message: digest})
	if err != nil {
		return "", err
	}
	text, err := c.gen.Generate(ctx, system, digest, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return text, nil
}
