package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/models"
)

const (
	// summaryPrefixLen bounds how much text is sent to the model.
	summaryPrefixLen = 2000
	summaryMaxTokens = 150
	summaryTemp      = 0.2
	nameMaxLen       = 50
)

// GeminiMetadataGenerator summarizes extracted text and derives a display
// name using the text-generation model.
type GeminiMetadataGenerator struct {
	client    *genai.Client
	modelName string
}

func NewGeminiMetadataGenerator(ctx context.Context, apiKey, modelName string) (*GeminiMetadataGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiMetadataGenerator{client: cl, modelName: modelName}, nil
}

func (g *GeminiMetadataGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiMetadataGenerator) Summarize(ctx context.Context, text, declaredType string) (models.DocumentMeta, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(summaryTemp)
	m.SetMaxOutputTokens(summaryMaxTokens)

	prefix := summaryPrefix(text)

	prompt := fmt.Sprintf(
		"Summarize the following %s document in two to three sentences, focusing on its economic content:\n\n%s",
		declaredType, prefix,
	)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return models.DocumentMeta{}, apperr.Wrap(err, apperr.KindMetadata, "summary generation failed")
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	return models.DocumentMeta{
		DocumentName:    DeriveDocumentName(text, declaredType),
		DocumentType:    declaredType,
		DocumentSummary: strings.TrimSpace(b.String()),
	}, nil
}

// summaryPrefix bounds the text sent to the model, cutting on rune
// boundaries so a multibyte character is never split.
func summaryPrefix(text string) string {
	runes := []rune(text)
	if len(runes) > summaryPrefixLen {
		return string(runes[:summaryPrefixLen])
	}
	return text
}

// DeriveDocumentName builds a display name from the first line of the text,
// ellipsized at 50 characters, falling back to a generic label when the
// first line is empty.
func DeriveDocumentName(text, declaredType string) string {
	firstLine := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return "Document." + declaredType
	}

	runes := []rune(firstLine)
	if len(runes) > nameMaxLen {
		return string(runes[:nameMaxLen]) + "..."
	}
	return firstLine
}

var _ core.MetadataGenerator = (*GeminiMetadataGenerator)(nil)
