package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/compiler"
	"github.com/swiftlens/swiftlens/internal/project"
)

type diagnosticOut struct {
	FilePath string `json:"file_path,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func diagnosticsOut(diags []compiler.Diagnostic) []diagnosticOut {
	out := make([]diagnosticOut, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagnosticOut{
			FilePath: d.File,
			Line:     d.Line,
			Column:   d.Column,
			Severity: d.Severity,
			Message:  d.Message,
		})
	}
	return out
}

type validateResponse struct {
	Success      bool            `json:"success"`
	FilePath     string          `json:"file_path"`
	Valid        bool            `json:"valid"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	Diagnostics  []diagnosticOut `json:"diagnostics"`
}

// autoValidate re-checks an edited file when the project's auto_validate
// setting asks for it. A missing compiler skips the pass silently; the edit
// itself already succeeded.
func (d *Deps) autoValidate(ctx context.Context, settings project.Settings, file, root string) *validationOut {
	if !settings.AutoValidate || d.Compiler == nil || !d.Compiler.Available() {
		return nil
	}
	res, err := d.Compiler.ValidateFile(ctx, file, root)
	if err != nil {
		if d.Log != nil {
			d.Log.Warn("auto-validate pass failed", "file", file, "error", err)
		}
		return nil
	}
	return &validationOut{
		Valid:        res.Valid,
		ErrorCount:   compiler.CountSeverity(res.Diagnostics, "error"),
		WarningCount: compiler.CountSeverity(res.Diagnostics, "warning"),
		Diagnostics:  diagnosticsOut(res.Diagnostics),
	}
}

// RegisterValidateFileTool registers the swift_validate_file tool.
func RegisterValidateFileTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_validate_file",
		mcp.WithDescription(`Type-check a Swift file with the Swift compiler.

Runs swiftc -typecheck against the file and reports every compiler diagnostic with its location and severity. A file that fails to type-check is still a successful tool call; check the "valid" field. This is a full compiler pass, so it catches what the language server's cached view may miss.`),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path to the Swift file")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filePath, err := request.RequireString("file_path")
		if err != nil {
			return toolError(errValidation, "file_path parameter is required"), nil
		}

		rec := deps.Recorder.Begin("swift_validate_file", "", filePath)

		validated, root, _, err := deps.validateWithSettings(filePath)
		if err != nil {
			deps.Recorder.End(rec, classify(err), err.Error())
			return toolErrorFrom(err), nil
		}
		rec.ProjectRoot = root

		res, err := deps.Compiler.ValidateFile(ctx, validated, root)
		if err != nil {
			errType := errInternal
			if errors.Is(err, compiler.ErrSwiftcNotFound) {
				errType = errEnvironment
			}
			deps.Recorder.End(rec, errType, err.Error())
			return toolError(errType, err.Error()), nil
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(validateResponse{
			Success:      true,
			FilePath:     validated,
			Valid:        res.Valid,
			ErrorCount:   compiler.CountSeverity(res.Diagnostics, "error"),
			WarningCount: compiler.CountSeverity(res.Diagnostics, "warning"),
			Diagnostics:  diagnosticsOut(res.Diagnostics),
		}), nil
	}

	s.AddTool(tool, handler)
}
