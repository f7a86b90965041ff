// Package redaction scrubs personal identifiers from free-text case notes.
package redaction

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// IgnoreFile is the name of the per-home file of extra patterns.
const IgnoreFile = ".casefileignore"

// sensitivePatterns are compiled once at package init and applied in layer 2.
var sensitivePatterns = []*regexp.Regexp{
	// SSN 123-45-6789
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	// SSN without dashes, when labelled
	regexp.MustCompile(`(?i)\b(?:ssn|social security(?: number)?)\s*[:#]?\s*\d{9}\b`),
	// Payment card numbers
	regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{1,4}\b`),
	// EBT and Medi-Cal card ids
	regexp.MustCompile(`(?i)\b(?:ebt|medi-?cal|medicaid)\s*(?:card|id|#|no\.?)?\s*[:#]?\s*[a-z]?\d[a-z0-9]{5,}\b`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*["']?.+`),
	regexp.MustCompile(`(?i)\bpin\s*[:=]\s*\d{4,6}\b`),
}

// redactedTagRe matches explicit <redacted>…</redacted> pairs (including multiline).
var redactedTagRe = regexp.MustCompile(`(?s)<redacted>.*?</redacted>`)

const replacement = "[REDACTED]"

// Redact applies a three-layer pipeline to text:
//
//  1. Explicit <redacted>…</redacted> tags are replaced with [REDACTED] until
//     no pairs remain; orphaned opening/closing tags are then stripped.
//  2. Built-in identifier patterns (SSNs, card numbers, benefit ids, PINs).
//  3. Caller-supplied extraPatterns (e.g. from LoadIgnore).
func Redact(text string, extraPatterns []*regexp.Regexp) string {
	// Layer 1: explicit tags, looped until stable.
	for {
		next := redactedTagRe.ReplaceAllString(text, replacement)
		if next == text {
			break
		}
		text = next
	}
	text = strings.ReplaceAll(text, "<redacted>", "")
	text = strings.ReplaceAll(text, "</redacted>", "")

	// Layer 2: built-in patterns.
	for _, re := range sensitivePatterns {
		text = re.ReplaceAllString(text, replacement)
	}

	// Layer 3: caller-supplied patterns.
	for _, re := range extraPatterns {
		text = re.ReplaceAllString(text, replacement)
	}

	return text
}

// LoadIgnore reads a .casefileignore file and compiles each non-blank,
// non-comment line as a regular expression.
// Returns nil (no error) if the file does not exist.
func LoadIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
