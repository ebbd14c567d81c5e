package sandbox

import "regexp"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Only keyword-anchored rules: short flags such as -t or -s are ordinary
// tool options (thread count, silent mode) and must survive redaction.
var secretRedactionRules = []redactionRule{
	{
		pattern:     regexp.MustCompile(`(?i)\b([a-z0-9_]*(?:token|secret|password|passwd|api[_-]?key|access[_-]?key)[a-z0-9_]*)\s*=\s*([^\s"'&]+|"[^"]*"|'[^']*')`),
		replacement: `$1=<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(authorization\s*:\s*(?:bearer|basic))\s+([^\s"']+)`),
		replacement: `$1 <redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(cookie\s*:\s*)([^"']+)`),
		replacement: `$1<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:token|secret|password|passwd|api[_-]?key|access[_-]?key|authorization)[a-z0-9_-]*)(\s*=\s*|\s+)([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1$2<redacted>`,
	},
}

// RedactText scrubs credentials from a command line or its output before
// it is logged.
func RedactText(input string) string {
	redacted := input
	for _, rule := range secretRedactionRules {
		redacted = rule.pattern.ReplaceAllString(redacted, rule.replacement)
	}
	return redacted
}
