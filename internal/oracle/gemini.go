package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Gemini extracts document text by calling the model directly. Credentials
// come from GOOGLE_API_KEY / GEMINI_API_KEY in the environment, which the
// genai client reads itself.
type Gemini struct{}

// Extract sends the blocks as one user turn of inline parts.
func (Gemini) Extract(ctx context.Context, req Request) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("oracle.Gemini: create client: %w", err)
	}

	var parts []*genai.Part
	for _, b := range req.Blocks {
		switch b.Type {
		case "input_text":
			parts = append(parts, &genai.Part{Text: b.Text})
		case "input_image", "input_file":
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: b.MIMEType, Data: b.Data},
			})
		}
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var config *genai.GenerateContentConfig
	if req.MaxOutputToks > 0 {
		config = &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxOutputToks)}
	}

	zerolog.Ctx(ctx).Debug().
		Str("model", req.Model).Int("parts", len(parts)).
		Msg("calling model directly")

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("oracle.Gemini: generate content: %w", err)
	}

	out := cleanModelText(resp.Text())
	if out == "" {
		return "", fmt.Errorf("oracle.Gemini: empty response from model")
	}
	return out, nil
}

// cleanModelText strips Markdown code fences when the model ignores the
// plain-text instruction.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
