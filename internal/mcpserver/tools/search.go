package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxPatternLen     = 1000
	maxPatternMatches = 1000
)

type patternMatch struct {
	Line      int    `json:"line"`
	Character int    `json:"character"`
	MatchText string `json:"match_text"`
	Context   string `json:"context,omitempty"`
}

type searchResponse struct {
	Success    bool           `json:"success"`
	FilePath   string         `json:"file_path"`
	Pattern    string         `json:"pattern"`
	Matches    []patternMatch `json:"matches"`
	MatchCount int            `json:"match_count"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// RegisterSearchPatternTool registers the swift_search_pattern tool.
func RegisterSearchPatternTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_search_pattern",
		mcp.WithDescription(`Find all matches of a pattern in a Swift file with precise positions.

Searches the file content directly without involving the language server, so it works even when the project has never been built. Matches report one-based line and character positions plus the matching line as context.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file to search")),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Pattern to search for; a literal string unless is_regex is true")),
		mcp.WithBoolean("is_regex",
			mcp.Description("Treat the pattern as a regular expression (default false)")),
		mcp.WithString("flags",
			mcp.Description("Regex flags: any of 'i' (ignore case), 'm' (multi-line anchors), 's' (dot matches newline)")),
		mcp.WithNumber("context_lines",
			mcp.Description("Lines of surrounding context to include with each match (default 0)")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}
		pattern, err := request.RequireString("pattern")
		if err != nil {
			return toolError(errValidation, "pattern parameter is required"), nil
		}
		if pattern == "" {
			return toolError(errValidation, "pattern must be a non-empty string"), nil
		}
		if len(pattern) > maxPatternLen {
			return toolError(errValidation, "pattern too long"), nil
		}

		args := request.GetArguments()
		isRegex := boolArg(args, "is_regex", false)
		flags, _ := args["flags"].(string)
		contextLines := 0
		if _, ok := args["context_lines"]; ok {
			contextLines, err = intArg(args, "context_lines")
			if err != nil || contextLines < 0 {
				return toolError(errValidation, "context_lines must be a non-negative integer"), nil
			}
		}

		re, err := compilePattern(pattern, isRegex, flags)
		if err != nil {
			return toolError(errValidation, err.Error()), nil
		}

		rec := deps.Recorder.Begin("swift_search_pattern", "", filePath)

		validated, root, _, err := deps.validateWithSettings(filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		content, err := readFileCapped(validated)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}

		matches, truncated := searchContent(content, re, contextLines)

		deps.Recorder.End(rec, "", "")
		return jsonResult(searchResponse{
			Success:    true,
			FilePath:   validated,
			Pattern:    pattern,
			Matches:    matches,
			MatchCount: len(matches),
			Truncated:  truncated,
		}), nil
	}

	s.AddTool(tool, handler)
}

// compilePattern builds the regexp for a search. Literal patterns are quoted,
// and single-letter flags are translated to inline regexp flags.
func compilePattern(pattern string, isRegex bool, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range strings.ToLower(flags) {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		default:
			return nil, fmt.Errorf("invalid flag %q, supported flags are i, m, s", string(f))
		}
	}

	expr := pattern
	if !isRegex {
		expr = regexp.QuoteMeta(pattern)
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return re, nil
}

// searchContent runs the compiled pattern over the file content and converts
// byte offsets into one-based line and character positions.
func searchContent(content string, re *regexp.Regexp, contextLines int) ([]patternMatch, bool) {
	idxs := re.FindAllStringIndex(content, maxPatternMatches+1)
	truncated := len(idxs) > maxPatternMatches
	if truncated {
		idxs = idxs[:maxPatternMatches]
	}

	lines := strings.Split(content, "\n")
	matches := make([]patternMatch, 0, len(idxs))
	for _, idx := range idxs {
		line, char := offsetToPosition(content, idx[0])
		m := patternMatch{
			Line:      line,
			Character: char,
			MatchText: content[idx[0]:idx[1]],
		}
		m.Context = contextAround(lines, line-1, contextLines)
		matches = append(matches, m)
	}
	return matches, truncated
}

func offsetToPosition(content string, offset int) (line, char int) {
	prefix := content[:offset]
	line = strings.Count(prefix, "\n") + 1
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	char = len([]rune(content[lineStart:offset])) + 1
	return line, char
}

func contextAround(lines []string, matchLine, contextLines int) string {
	if contextLines <= 0 {
		if matchLine < 0 || matchLine >= len(lines) {
			return ""
		}
		return strings.TrimSpace(lines[matchLine])
	}
	start := max(0, matchLine-contextLines)
	end := min(len(lines)-1, matchLine+contextLines)
	return strings.Join(lines[start:end+1], "\n")
}
