package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// InjectionType represents a family of prompt injection attempts
type InjectionType string

const (
	InjectionTypeSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionTypeRoleManipulation    InjectionType = "role_manipulation"
	InjectionTypeInstructionOverride InjectionType = "instruction_override"
	InjectionTypeBookingTampering    InjectionType = "booking_tampering"
	InjectionTypeJailbreak           InjectionType = "jailbreak"
	InjectionTypeDelimiterAttack     InjectionType = "delimiter_attack"
	InjectionTypeEncodingAttack      InjectionType = "encoding_attack"
)

// InjectionDetection represents a detected injection attempt
type InjectionDetection struct {
	Type       InjectionType
	Pattern    string
	Confidence float64
	StartPos   int
	EndPos     int
}

type injectionRule struct {
	kind       InjectionType
	confidence float64
	weight     float64
	patterns   []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

var injectionRules = []injectionRule{
	{
		kind:       InjectionTypeSystemPromptLeak,
		confidence: 0.9,
		weight:     1.5,
		patterns: compileAll(
			`(?i)ignore\s+(all\s+)?(previous|all|above|prior)\s+(instructions?|prompts?|steps?)`,
			`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden)\s+(prompt|instructions?)`,
			`(?i)what\s+(is|are|were)\s+(your|the)\s+(system|original|initial)\s+(prompt|instructions?)`,
		),
	},
	{
		kind:       InjectionTypeRoleManipulation,
		confidence: 0.85,
		weight:     1,
		patterns: compileAll(
			`(?i)(you|your)\s+(are|role|identity)\s+(now|is\s+now|changed)`,
			`(?i)assume\s+(the\s+)?(role|identity)\s+of`,
			`(?i)pretend\s+(to\s+)?be\s+(a|an)\s`,
			`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`,
		),
	},
	{
		kind:       InjectionTypeInstructionOverride,
		confidence: 0.9,
		weight:     1.5,
		patterns: compileAll(
			`(?i)disregard\s+(all|previous|above|any)\s+(instructions?|rules|steps?)`,
			`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`,
			`(?i)forget\s+(everything|all\s+previous|your\s+instructions)`,
			`(?i)new\s+(system\s+)?instructions?\s*:`,
		),
	},
	{
		kind:       InjectionTypeBookingTampering,
		confidence: 0.9,
		weight:     2,
		patterns: compileAll(
			`(?i)set\s+(the\s+)?booking_amount\s+to`,
			`(?i)(mark|treat)\s+(the\s+)?(payment|booking)\s+as\s+(paid|complete|confirmed)`,
			`(?i)(free|zero[-\s]cost)\s+tickets?\s+for\s+everyone`,
		),
	},
	{
		kind:       InjectionTypeJailbreak,
		confidence: 0.95,
		weight:     2,
		patterns: compileAll(
			`(?i)\bDAN\s+mode`,
			`(?i)developer\s+mode`,
			`(?i)jailbreak`,
			`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`,
		),
	},
	{
		kind:       InjectionTypeDelimiterAttack,
		confidence: 0.8,
		weight:     1,
		patterns: compileAll(
			`(\[/?(SYSTEM|USER|ASSISTANT)\])`,
			`(<\|(system|user|assistant|end)\|>)`,
			`(###\s*(SYSTEM|INSTRUCTION))`,
		),
	},
	{
		kind:       InjectionTypeEncodingAttack,
		confidence: 0.7,
		weight:     1,
		patterns: compileAll(
			`(?i)base64\s*[:\s=]\s*[A-Za-z0-9+/]{20,}={0,2}`,
			`(?:\\x[0-9a-fA-F]{2}){10,}`,
		),
	},
}

// DetectInjections returns every injection pattern matched in the text,
// ordered by position.
func DetectInjections(text string) []InjectionDetection {
	var detections []InjectionDetection
	for _, rule := range injectionRules {
		for _, pattern := range rule.patterns {
			for _, match := range pattern.FindAllStringIndex(text, -1) {
				detections = append(detections, InjectionDetection{
					Type:       rule.kind,
					Pattern:    pattern.String(),
					Confidence: rule.confidence,
					StartPos:   match[0],
					EndPos:     match[1],
				})
			}
		}
	}
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})
	return detections
}

// IsInjectionAttempt returns true if a high-confidence injection is detected
func IsInjectionAttempt(text string) bool {
	for _, d := range DetectInjections(text) {
		if d.Confidence >= 0.8 {
			return true
		}
	}
	return false
}

func ruleWeight(kind InjectionType) float64 {
	for _, rule := range injectionRules {
		if rule.kind == kind {
			return rule.weight
		}
	}
	return 1
}

// GetInjectionRiskScore calculates an overall risk score between 0 and 1 as
// the weighted average confidence of all detections.
func GetInjectionRiskScore(text string) float64 {
	detections := DetectInjections(text)
	if len(detections) == 0 {
		return 0
	}

	var total, weights float64
	for _, d := range detections {
		w := ruleWeight(d.Type)
		total += d.Confidence * w
		weights += w
	}

	score := total / weights
	if score > 1 {
		score = 1
	}
	return score
}

// ValidatePromptSafety fails when the risk score reaches maxRiskScore
func ValidatePromptSafety(text string, maxRiskScore float64) error {
	riskScore := GetInjectionRiskScore(text)
	if riskScore < maxRiskScore {
		return nil
	}

	var types []string
	seen := make(map[InjectionType]bool)
	for _, d := range DetectInjections(text) {
		if !seen[d.Type] {
			types = append(types, string(d.Type))
			seen[d.Type] = true
		}
	}

	return fmt.Errorf("prompt safety validation failed: risk score %.2f (threshold: %.2f), detected: %s",
		riskScore, maxRiskScore, strings.Join(types, ", "))
}
