package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/content-aggregator/internal/models"
)

// stripMarkdownCodeBlock removes markdown code block delimiters from AI responses
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}

// ContentAnalysis is the AI's structured read of one content item
type ContentAnalysis struct {
	Keywords  []string `json:"keywords"`
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
}

// BatchAnalysisResponse is the response shape for batch analysis
type BatchAnalysisResponse struct {
	Analyses []struct {
		Index     int      `json:"index"`
		Keywords  []string `json:"keywords"`
		Summary   string   `json:"summary"`
		Sentiment string   `json:"sentiment"`
	} `json:"analyses"`
}

// AnalyzeContent extracts keywords, a summary and sentiment from one item
func (c *Client) AnalyzeContent(ctx context.Context, platformType string, content *models.Content) (*ContentAnalysis, error) {
	body := content.Body
	if len(body) > 4000 {
		body = body[:4000]
	}
	userPrompt := fmt.Sprintf(ContentAnalysisUserPrompt,
		platformType,
		content.ContentID,
		content.Title,
		body,
	)

	response, err := c.CompleteWithJSON(ctx, ContentAnalysisSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze content: %w", err)
	}

	var analysis ContentAnalysis
	cleaned := stripMarkdownCodeBlock(response)
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		c.log.Error().
			Str("response", response).
			Msg("Failed to parse analysis response")
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	return &analysis, nil
}

// AnalyzeBatch analyzes multiple items in a single request. Items the model
// skips come back as nil entries so positions stay aligned with the input.
func (c *Client) AnalyzeBatch(ctx context.Context, platformType string, contents []*models.Content) ([]*ContentAnalysis, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, content := range contents {
		body := content.Body
		if len(body) > 1000 {
			body = body[:1000]
		}
		fmt.Fprintf(&sb, "--- Post %d ---\nPlatform: %s\nTitle: %s\nBody: %s\n\n",
			i, platformType, content.Title, body)
	}

	response, err := c.CompleteWithJSON(ctx, ContentAnalysisSystemPrompt,
		fmt.Sprintf(BatchAnalysisUserPrompt, sb.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze batch: %w", err)
	}

	var batch BatchAnalysisResponse
	cleaned := stripMarkdownCodeBlock(response)
	if err := json.Unmarshal([]byte(cleaned), &batch); err != nil {
		c.log.Error().
			Str("response", response).
			Msg("Failed to parse batch analysis response")
		return nil, fmt.Errorf("failed to parse batch analysis response: %w", err)
	}

	results := make([]*ContentAnalysis, len(contents))
	for _, a := range batch.Analyses {
		if a.Index < 0 || a.Index >= len(contents) {
			continue
		}
		results[a.Index] = &ContentAnalysis{
			Keywords:  a.Keywords,
			Summary:   a.Summary,
			Sentiment: a.Sentiment,
		}
	}
	return results, nil
}
