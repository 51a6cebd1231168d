package toolchain

import (
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is one gcc/clang style message from compiler stderr.
type Diagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// gcc/clang format: main.c:4:15: error: expected ';' before '}' token
var diagLineRe = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(fatal error|error|warning|note):\s+(.+)$`)

// ParseDiagnostics extracts structured diagnostics from compiler stderr.
// Lines that do not match the file:line[:col]: severity: message shape are skipped.
func ParseDiagnostics(stderr string) []Diagnostic {
	var out []Diagnostic
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		m := diagLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		sev := m[4]
		if sev == "fatal error" {
			sev = "error"
		}
		out = append(out, Diagnostic{
			File:     m[1],
			Line:     lineNum,
			Column:   col,
			Severity: sev,
			Message:  m[5],
		})
	}
	return out
}

// FirstError returns the first error-severity diagnostic.
func FirstError(diags []Diagnostic) (Diagnostic, bool) {
	for _, d := range diags {
		if d.Severity == "error" {
			return d, true
		}
	}
	return Diagnostic{}, false
}
