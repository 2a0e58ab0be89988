package ai

// Content analysis prompts
const (
	ContentAnalysisSystemPrompt = `You are a content analyst for a multi-platform content aggregation system.

Your task is to analyze posts collected from social and publishing platforms (GitHub, Reddit, Medium, private communities) and extract structured signals from them.

For each post, produce:
- keywords: the 3-8 most specific terms or phrases a reader would search for
- summary: one sentence capturing what the post says, not what it is about
- sentiment: one of "positive", "neutral", "negative"`

	ContentAnalysisUserPrompt = `Analyze the following post.

Platform: %s
Author: %s
Title: %s
Body:
%s

Respond in JSON format:
{
  "keywords": ["<keyword>", "..."],
  "summary": "<one sentence>",
  "sentiment": "<positive|neutral|negative>"
}`

	BatchAnalysisUserPrompt = `Analyze each of the following posts.

Posts:
%s

Respond in JSON format:
{
  "analyses": [
    {
      "index": <position in input, starting at 0>,
      "keywords": ["<keyword>", "..."],
      "summary": "<one sentence>",
      "sentiment": "<positive|neutral|negative>"
    }
  ]
}`
)
