package compiler

import (
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is one message from the Swift compiler.
type Diagnostic struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// swiftc emits "path:line:col: severity: message"; some file-level failures
// drop the column.
var (
	diagWithColumn = regexp.MustCompile(`^(.*?):(\d+):(\d+): (error|warning|note): (.*)$`)
	diagNoColumn   = regexp.MustCompile(`^(.*?):(\d+): (error|warning|note): (.*)$`)
)

// ParseDiagnostics extracts structured diagnostics from swiftc output.
// Source excerpts and caret lines between diagnostics are dropped.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := diagWithColumn.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     ln,
				Column:   col,
				Severity: m[4],
				Message:  m[5],
			})
			continue
		}
		if m := diagNoColumn.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     ln,
				Severity: m[3],
				Message:  m[4],
			})
		}
	}
	return diags
}

// HasErrors reports whether any diagnostic carries error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == "error" {
			return true
		}
	}
	return false
}

// CountSeverity returns how many diagnostics carry the given severity.
func CountSeverity(diags []Diagnostic, severity string) int {
	n := 0
	for _, d := range diags {
		if d.Severity == severity {
			n++
		}
	}
	return n
}
