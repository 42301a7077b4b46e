package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// PIIType represents a kind of visitor data that must not reach the audit trail
type PIIType string

const (
	PIITypeEmail    PIIType = "email"
	PIITypePhone    PIIType = "phone"
	PIITypeAadhaar  PIIType = "aadhaar"
	PIITypePAN      PIIType = "pan"
	PIITypeCard     PIIType = "card"
	PIITypePassport PIIType = "passport"
)

// PIIDetection represents a detected PII instance
type PIIDetection struct {
	Type     PIIType
	Value    string
	StartPos int
	EndPos   int
}

type piiRule struct {
	kind    PIIType
	pattern *regexp.Regexp
	check   func(string) bool
}

// Rules are listed so that, for identical spans, the more specific kind wins
var piiRules = []piiRule{
	{PIITypeEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), nil},
	// 13 to 19 digits, optionally grouped
	{PIITypeCard, regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`), luhnCheck},
	// 12 digits in groups of four; never starts with 0 or 1
	{PIITypeAadhaar, regexp.MustCompile(`\b[2-9][0-9]{3}[ -]?[0-9]{4}[ -]?[0-9]{4}\b`), nil},
	// Indian mobile numbers with an optional +91 or 0 prefix
	{PIITypePhone, regexp.MustCompile(`(?:\+91[ -]?|\b0?)[6-9][0-9]{4}[ -]?[0-9]{5}\b`), nil},
	{PIITypePAN, regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`), nil},
	{PIITypePassport, regexp.MustCompile(`\b[A-Z][0-9]{7}\b`), nil},
}

// DetectPII returns true if the text likely contains visitor PII
func DetectPII(text string) bool {
	return len(DetectAllPII(text)) > 0
}

// DetectAllPII returns the PII found in text ordered by position. Overlapping
// matches are resolved in favour of the longest one.
func DetectAllPII(text string) []PIIDetection {
	var candidates []PIIDetection
	for _, rule := range piiRules {
		for _, match := range rule.pattern.FindAllStringIndex(text, -1) {
			value := text[match[0]:match[1]]
			if rule.check != nil && !rule.check(value) {
				continue
			}
			candidates = append(candidates, PIIDetection{
				Type:     rule.kind,
				Value:    value,
				StartPos: match[0],
				EndPos:   match[1],
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].StartPos != candidates[j].StartPos {
			return candidates[i].StartPos < candidates[j].StartPos
		}
		return candidates[i].EndPos > candidates[j].EndPos
	})

	detections := make([]PIIDetection, 0, len(candidates))
	end := -1
	for _, d := range candidates {
		if d.StartPos < end {
			continue
		}
		detections = append(detections, d)
		end = d.EndPos
	}
	return detections
}

// RedactPII replaces every detected PII value with a type marker
func RedactPII(text string) string {
	detections := DetectAllPII(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range detections {
		b.WriteString(text[last:d.StartPos])
		b.WriteString(redactionMarker(d.Type))
		last = d.EndPos
	}
	b.WriteString(text[last:])
	return b.String()
}

func redactionMarker(piiType PIIType) string {
	return "[" + strings.ToUpper(string(piiType)) + "_REDACTED]"
}

// luhnCheck validates a card number using the Luhn algorithm
func luhnCheck(cardNumber string) bool {
	cardNumber = strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isSecond := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')
		if digit < 0 || digit > 9 {
			return false
		}
		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isSecond = !isSecond
	}
	return sum%10 == 0
}
