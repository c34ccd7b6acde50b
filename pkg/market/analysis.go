package market

import (
	"context"
	"errors"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/router"
)

// DefaultImageMIME is assumed for screenshots uploaded without a type.
const DefaultImageMIME = "image/jpeg"

// AnalyzeStock returns the chart, levels, fundamentals and news for one
// ticker.
func (s *Service) AnalyzeStock(ctx context.Context, symbol string, force bool) (models.StockAnalysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.StockAnalysis{}, errors.New("analyze: symbol is required")
	}
	c := call{
		feature:  FeatureAnalysis,
		cacheKey: "analysis_" + symbol,
		route:    searchRoute(scanTemperature),
		prompt:   analysisPrompt(symbol, s.now().Format("3:04:05 PM")),
	}
	return fetch(ctx, s, force, c, func(raw any, _ *llm.Response) models.StockAnalysis {
		return stockAnalysis(raw, symbol)
	})
}

// ExtractTickersFromImage reads ticker symbols from a screenshot. Results
// are never cached.
func (s *Service) ExtractTickersFromImage(ctx context.Context, img []byte, mimeType string) (models.ScreenshotAnalysisResult, error) {
	if len(img) == 0 {
		return models.ScreenshotAnalysisResult{}, errors.New("screenshot: image is empty")
	}
	if mimeType == "" {
		mimeType = DefaultImageMIME
	}

	resp, err := s.generate(ctx, call{
		feature: FeatureScreenshot,
		prompt:  screenshotPrompt(),
		images:  []llm.Image{{Data: img, MIMEType: mimeType}},
	})
	if err != nil {
		return models.ScreenshotAnalysisResult{}, err
	}
	return screenshot(s.extractor.JSON(resp.Text)), nil
}

// ChatWithAnalyst answers a free-form question about contextData, usually
// the result the user is looking at. It never returns an error: failures
// produce a canned reply.
func (s *Service) ChatWithAnalyst(ctx context.Context, message string, contextData any) (string, error) {
	resp, err := s.generate(ctx, call{
		feature: FeatureChat,
		route:   router.Route{Temperature: llm.Temp(chatTemperature)},
		prompt:  chatPrompt(message, contextData),
	})
	if err != nil {
		s.degraded(FeatureChat, err)
		return chatUnavailable, nil
	}
	if text := strings.TrimSpace(resp.Text); text != "" {
		return text, nil
	}
	return chatEmpty, nil
}
