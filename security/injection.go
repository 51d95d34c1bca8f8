package security

import "regexp"

// Injection screening patterns, compiled once at init. Three families are
// checked in order: SQL, document-query operators, and OS command syntax.
// The first family match wins.
//
// This is a blacklist over known signatures, not a parser, so false
// negatives are expected and acceptable: the screening exists for
// defense-in-depth and early rejection of obvious probes, while the actual
// query layer must use parameterized queries regardless.
var (
	sqlInjectionPatterns = []*regexp.Regexp{
		// Query keywords appearing in free text
		regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|truncate|alter|create|union|exec|execute)\b`),
		// Tautology probes: OR 'x'='x', AND 1=1
		regexp.MustCompile(`(?i)\b(or|and)\b\s+['"]?[\w]+['"]?\s*=\s*['"]?[\w]+['"]?`),
		// Comment markers and statement terminators
		regexp.MustCompile(`--|/\*[\s\S]*?\*/|;`),
		// Dangerous stored procedures
		regexp.MustCompile(`(?i)\b(xp_cmdshell|sp_executesql|xp_regread)\b`),
	}

	documentQueryPatterns = []*regexp.Regexp{
		// Document store query operators
		regexp.MustCompile(`\$(where|ne|gt|lt|gte|lte|in|nin|elemMatch|regex)\b`),
		// $where combined with code execution
		regexp.MustCompile(`(?i)\$where\b[\s\S]*\b(function|eval|settimeout|setinterval)\b`),
	}

	commandInjectionPatterns = []*regexp.Regexp{
		// Shell separator or pipe followed by a command name
		regexp.MustCompile("(?i)[;|`]\\s*(ls|cat|rm|mv|cp|curl|wget|sh|bash|zsh|nc|netcat|chmod|chown|ps|kill|ping|whoami|id|env)\\b"),
		// Subshell execution $(...)
		regexp.MustCompile(`\$\([^)]*\)`),
		// Backtick execution
		regexp.MustCompile("`[^`]+`"),
	}
)

// DetectInjection reports whether text matches a known injection signature
// from any of the three pattern families. It returns on the first match.
func DetectInjection(text string) bool {
	if text == "" {
		return false
	}

	for _, p := range sqlInjectionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, p := range documentQueryPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	for _, p := range commandInjectionPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
