package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 2048
	limitMaxOutputTokens int64 = 8192

	systemPrompt = `You are a professional social media analyst producing a daily monitoring report.

From the post data you are given:
1. Summarize each account's main activity (2-3 sentences per account).
2. Identify the major topics and trends of the day.
3. Analyze the viewpoints, positions and potential impact these posts reflect.
4. End with a "## Key Insights" section listing the 3-5 most important findings as "-" bullets.

Stay objective and structured. Use markdown headings.`
)

// OpenAIAnalyzer calls OpenAI's Responses API to produce the daily analysis.
type OpenAIAnalyzer struct {
	client openai.Client
	model  string
}

// NewOpenAIAnalyzer builds a new analyzer instance.
func NewOpenAIAnalyzer(apiKey, model string) (*OpenAIAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API key is empty")
	}

	return &OpenAIAnalyzer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Analyze produces the report for one day's window of posts.
func (a *OpenAIAnalyzer) Analyze(
	ctx context.Context,
	posts []models.Post,
	date time.Time,
) (*Analysis, error) {
	userPromptBuilder := strings.Builder{}
	fmt.Fprintf(&userPromptBuilder, "Analyze the following post data for %s.\n",
		date.UTC().Format("2006-01-02"))
	userPromptBuilder.WriteString("Post data:\n")
	userPromptBuilder.WriteString(formatPosts(posts))

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModel(a.model),
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPromptBuilder.String()),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens *= 2
				if maxOutputTokens > limitMaxOutputTokens {
					maxOutputTokens = limitMaxOutputTokens
				}
				continue
			}
			return nil, fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return nil, fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}

		return &Analysis{
			Text:     text,
			Insights: parseInsights(text),
		}, nil
	}
}
