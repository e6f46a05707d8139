package tools

import (
	"context"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

type fileImportsResponse struct {
	Success  bool     `json:"success"`
	FilePath string   `json:"file_path"`
	Imports  []string `json:"imports"`
	Count    int      `json:"count"`
}

// Matches "import Foundation", "@testable import MyModule" and submodule or
// declaration imports like "import class UIKit.UIView".
var importLine = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s+)*import\s+(?:(?:typealias|struct|class|enum|protocol|actor|let|var|func)\s+)?([A-Za-z_][\w.]*)`)

// parseImports scans Swift source for import declarations. Commented-out
// imports are skipped; duplicates are collapsed in declaration order.
func parseImports(content string) []string {
	imports := []string{}
	seen := make(map[string]struct{})
	inBlockComment := 0

	for _, line := range strings.Split(content, "\n") {
		if inBlockComment > 0 {
			inBlockComment += strings.Count(line, "/*") - strings.Count(line, "*/")
			if inBlockComment < 0 {
				inBlockComment = 0
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		if m := importLine.FindStringSubmatch(line); m != nil {
			if _, dup := seen[m[1]]; !dup {
				seen[m[1]] = struct{}{}
				imports = append(imports, m[1])
			}
		}

		inBlockComment += strings.Count(line, "/*") - strings.Count(line, "*/")
		if inBlockComment < 0 {
			inBlockComment = 0
		}
	}
	return imports
}

// RegisterFileImportsTool registers the swift_get_file_imports tool.
func RegisterFileImportsTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_get_file_imports",
		mcp.WithDescription(`List the modules a Swift file imports.

Returns every import declaration in the file, including attributed forms like "@testable import" and declaration imports like "import class UIKit.UIView". Use this to understand a file's dependencies before editing it.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}

		rec := deps.Recorder.Begin("swift_get_file_imports", "", filePath)

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

		imports := parseImports(content)

		deps.Recorder.End(rec, "", "")
		return jsonResult(fileImportsResponse{
			Success:  true,
			FilePath: validated,
			Imports:  imports,
			Count:    len(imports),
		}), nil
	}

	s.AddTool(tool, handler)
}
