package events

import (
	"fmt"
	"regexp"
)

// Field kinds accepted by validation rules.
const (
	KindString = "string"
	KindNumber = "number"
	KindBool   = "bool"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9()\-\s.]{5,20}$`)
	urlPattern   = regexp.MustCompile(`^https?://`)
)

// FieldRule constrains one event parameter. Zero-valued constraints are
// not checked.
type FieldRule struct {
	Required bool
	Kind     string
	MaxLen   int
	Min      float64
	Max      float64
	HasRange bool
	Pattern  *regexp.Regexp
}

// Schema maps parameter names to their rules for one event type.
type Schema map[string]FieldRule

// Schemas declares per-event-type validation, applied only in dev mode.
// Violations are diagnostic: logged, never enforced.
var Schemas = map[string]Schema{
	EventQuoteRequest: {
		"email":   {Required: true, Kind: KindString, Pattern: emailPattern},
		"phone":   {Kind: KindString, Pattern: phonePattern},
		"product": {Kind: KindString, MaxLen: 200},
		"source":  {Kind: KindString, MaxLen: 100},
	},
	EventCallbackRequest: {
		"phone": {Required: true, Kind: KindString, Pattern: phonePattern},
		"name":  {Kind: KindString, MaxLen: 100},
	},
	EventContactForm: {
		"email":   {Required: true, Kind: KindString, Pattern: emailPattern},
		"message": {Kind: KindString, MaxLen: 5000},
	},
	EventPhoneClick: {
		"phone_number": {Kind: KindString, Pattern: phonePattern},
		"location":     {Kind: KindString, MaxLen: 100},
	},
	EventCalculatorStart: {
		"calculator_type": {Required: true, Kind: KindString, MaxLen: 100},
	},
	EventCalculatorStep: {
		"step":      {Required: true, Kind: KindNumber, Min: 1, Max: 50, HasRange: true},
		"step_name": {Kind: KindString, MaxLen: 100},
	},
	EventCalculatorOption: {
		"option_name":  {Required: true, Kind: KindString, MaxLen: 100},
		"option_value": {Kind: KindString, MaxLen: 200},
	},
	EventFormAbandon: {
		"form_id":          {Required: true, Kind: KindString, MaxLen: 100},
		"fields_completed": {Kind: KindNumber, Min: 0, Max: 100, HasRange: true},
		"page_url":         {Kind: KindString, Pattern: urlPattern},
	},
}

// Validate checks params against the declared schema for an event type
// and returns human-readable violations. Events without a schema pass.
func Validate(event string, params map[string]any) []string {
	schema, exists := Schemas[event]
	if !exists {
		return nil
	}

	var violations []string
	for field, rule := range schema {
		value, present := params[field]
		if !present {
			if rule.Required {
				violations = append(violations, fmt.Sprintf("%s: required field missing", field))
			}
			continue
		}
		violations = append(violations, checkField(field, rule, value)...)
	}
	return violations
}

func checkField(field string, rule FieldRule, value any) []string {
	var violations []string

	switch rule.Kind {
	case KindString:
		str, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: expected string, got %T", field, value)}
		}
		if rule.MaxLen > 0 && len(str) > rule.MaxLen {
			violations = append(violations, fmt.Sprintf("%s: length %d exceeds max %d", field, len(str), rule.MaxLen))
		}
		if rule.Pattern != nil && str != "" && !rule.Pattern.MatchString(str) {
			violations = append(violations, fmt.Sprintf("%s: value does not match expected format", field))
		}
	case KindNumber:
		num, ok := asNumber(value)
		if !ok {
			return []string{fmt.Sprintf("%s: expected number, got %T", field, value)}
		}
		if rule.HasRange && (num < rule.Min || num > rule.Max) {
			violations = append(violations, fmt.Sprintf("%s: %v outside range [%v, %v]", field, num, rule.Min, rule.Max))
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("%s: expected bool, got %T", field, value)}
		}
	}
	return violations
}

// asNumber accepts the numeric types JSON decoding and Go callers produce.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
