package prompt

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	intprompt "github.com/sangrahalaya/ticketbot/internal/prompt"
)

// ScreenConfig holds configuration for screening visitor queries
type ScreenConfig struct {
	MinLength            int
	MaxLength            int
	EnableInjectionGuard bool
	MaxInjectionRisk     float64
}

// DefaultScreenConfig returns the default screening configuration
func DefaultScreenConfig() ScreenConfig {
	return ScreenConfig{
		MinLength:            1,
		MaxLength:            4000,
		EnableInjectionGuard: true,
		MaxInjectionRisk:     0.8,
	}
}

// ScreenResult contains the outcome of screening a query
type ScreenResult struct {
	Valid               bool
	Errors              []string
	Warnings            []string
	InjectionDetected   bool
	InjectionRiskScore  float64
	InjectionDetections []intprompt.InjectionDetection
}

// Screener checks visitor queries before they reach the chat pipeline
type Screener struct {
	config ScreenConfig
}

// NewScreener creates a new screener with the given configuration
func NewScreener(config ScreenConfig) *Screener {
	return &Screener{config: config}
}

// Screen runs length, format and injection checks on a query
func (s *Screener) Screen(ctx context.Context, query string) (*ScreenResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result := &ScreenResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	length := utf8.RuneCountInString(strings.TrimSpace(query))
	if length < s.config.MinLength {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("query too short: minimum %d characters", s.config.MinLength))
	}
	if s.config.MaxLength > 0 && length > s.config.MaxLength {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("query too long: maximum %d characters", s.config.MaxLength))
	}

	if err := validateFormat(query); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if s.config.EnableInjectionGuard {
		result.InjectionDetections = intprompt.DetectInjections(query)
		result.InjectionRiskScore = intprompt.GetInjectionRiskScore(query)
		result.InjectionDetected = len(result.InjectionDetections) > 0

		if result.InjectionRiskScore >= s.config.MaxInjectionRisk {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("prompt injection risk too high: %.2f (max: %.2f)", result.InjectionRiskScore, s.config.MaxInjectionRisk))
		} else if result.InjectionDetected {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("moderate injection risk detected: %.2f", result.InjectionRiskScore))
		}
	}

	return result, nil
}

// validateFormat rejects null bytes and control characters other than
// newlines and tabs
func validateFormat(query string) error {
	for _, r := range query {
		if r == 0 {
			return fmt.Errorf("query contains null bytes")
		}
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("query contains invalid control characters")
		}
	}
	return nil
}
