package security

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// emailPattern is a structural check only: some non-whitespace before "@",
// some after, and a dot-separated suffix. It does not verify deliverability.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidateEmail reports whether s has the structural shape of an email
// address.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// PasswordCheck is the result of a password strength check. When Valid is
// false, Message names the first violated rule; strength feedback is
// acceptable to surface to the user, unlike login failure detail.
type PasswordCheck struct {
	Valid   bool
	Message string
}

// ValidatePasswordStrength checks password strength rules in a fixed order
// and fails fast on the first violation: minimum length, uppercase,
// lowercase, digit, then symbol.
func ValidatePasswordStrength(password string) PasswordCheck {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return PasswordCheck{Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return PasswordCheck{Message: "Password must contain at least one uppercase letter"}
	case !hasLower:
		return PasswordCheck{Message: "Password must contain at least one lowercase letter"}
	case !hasDigit:
		return PasswordCheck{Message: "Password must contain at least one number"}
	case !hasSymbol:
		return PasswordCheck{Message: "Password must contain at least one special character"}
	}

	return PasswordCheck{Valid: true}
}

// FieldType selects the validation dispatch for a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeEmail   FieldType = "email"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
)

// FieldSchema describes the checks applied to one input field.
type FieldSchema struct {
	Type      FieldType
	Required  bool
	MinLength int
	MaxLength int // 0 means no maximum
	Pattern   *regexp.Regexp
}

// Schema maps field names to their checks.
type Schema map[string]FieldSchema

// Result is the outcome of a ValidateAndSanitize call. Sanitized holds the
// cleaned value for every field that passed its checks; Errors holds one
// message per failed field. Valid is true only when Errors is empty.
type Result struct {
	Valid     bool
	Sanitized map[string]any
	Errors    map[string]string
}

// ValidateAndSanitize validates data against schema, accumulating every
// field error before returning rather than failing fast at the schema level.
// String and email fields are sanitized; numbers are coerced; booleans are
// type-checked only. Absent optional fields are skipped entirely.
func ValidateAndSanitize(data map[string]any, schema Schema) Result {
	result := Result{
		Sanitized: make(map[string]any, len(schema)),
		Errors:    make(map[string]string),
	}

	for field, rules := range schema {
		value, present := data[field]
		if isEmptyValue(value) {
			present = false
		}

		if !present {
			if rules.Required {
				result.Errors[field] = fmt.Sprintf("%s is required", field)
			}
			continue
		}

		switch rules.Type {
		case TypeString:
			validateStringField(field, value, rules, &result)
		case TypeEmail:
			validateEmailField(field, value, &result)
		case TypeNumber:
			validateNumberField(field, value, &result)
		case TypeBoolean:
			if b, ok := value.(bool); ok {
				result.Sanitized[field] = b
			} else {
				result.Errors[field] = fmt.Sprintf("%s must be a boolean", field)
			}
		default:
			result.Errors[field] = fmt.Sprintf("%s has an unsupported type", field)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func validateStringField(field string, value any, rules FieldSchema, result *Result) {
	s, ok := value.(string)
	if !ok {
		result.Errors[field] = fmt.Sprintf("%s must be a string", field)
		return
	}

	length := utf8.RuneCountInString(s)
	if rules.MinLength > 0 && length < rules.MinLength {
		result.Errors[field] = fmt.Sprintf("%s must be at least %d characters", field, rules.MinLength)
		return
	}
	if rules.MaxLength > 0 && length > rules.MaxLength {
		result.Errors[field] = fmt.Sprintf("%s must be at most %d characters", field, rules.MaxLength)
		return
	}
	if rules.Pattern != nil && !rules.Pattern.MatchString(s) {
		result.Errors[field] = fmt.Sprintf("%s has an invalid format", field)
		return
	}

	result.Sanitized[field] = Sanitize(s)
}

func validateEmailField(field string, value any, result *Result) {
	s, ok := value.(string)
	if !ok || !ValidateEmail(s) {
		result.Errors[field] = fmt.Sprintf("%s must be a valid email address", field)
		return
	}
	result.Sanitized[field] = Sanitize(s)
}

func validateNumberField(field string, value any, result *Result) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			result.Errors[field] = fmt.Sprintf("%s must be a number", field)
			return
		}
		f = parsed
	default:
		result.Errors[field] = fmt.Sprintf("%s must be a number", field)
		return
	}

	if math.IsNaN(f) {
		result.Errors[field] = fmt.Sprintf("%s must be a number", field)
		return
	}
	result.Sanitized[field] = f
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
