package tools

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/swiftlens/swiftlens/internal/project"
)

const environmentProbeTimeout = 5 * time.Second

type environmentInfo struct {
	Platform            string `json:"platform"`
	XcrunAvailable      bool   `json:"xcrun_available"`
	SwiftAvailable      bool   `json:"swift_available"`
	SwiftVersion        string `json:"swift_version,omitempty"`
	SourcekitAvailable  bool   `json:"sourcekit_lsp_available"`
	SourcekitCommand    string `json:"sourcekit_lsp_command"`
	WorkingDirectory    string `json:"working_directory"`
	ProjectType         string `json:"project_type,omitempty"`
	SwiftFileCount      int    `json:"swift_file_count,omitempty"`
	SwiftcAvailable     bool   `json:"swiftc_available"`
	IndexStoreAvailable bool   `json:"index_store_available"`
	BuildRequired       bool   `json:"build_required"`
}

type environmentResponse struct {
	Success         bool            `json:"success"`
	Environment     environmentInfo `json:"environment"`
	Ready           bool            `json:"ready"`
	Recommendations []string        `json:"recommendations"`
}

// RegisterCheckEnvironmentTool registers the swift_check_environment tool.
func RegisterCheckEnvironmentTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_check_environment",
		mcp.WithDescription(`Check whether the Swift development environment is ready for the other tools.

Probes for the Swift toolchain and sourcekit-lsp, inspects the project at the given path (or the working directory) and reports whether an index store exists. Returns actionable recommendations when something is missing.`),
		mcp.WithString("project_path",
			mcp.Description("Project directory to inspect; defaults to the working directory")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rec := deps.Recorder.Begin("swift_check_environment", "", "")

		lspCommand := deps.LSPCommand
		if lspCommand == "" {
			lspCommand = "sourcekit-lsp"
		}

		env := environmentInfo{
			Platform:         runtime.GOOS,
			SourcekitCommand: lspCommand,
		}
		if wd, err := os.Getwd(); err == nil {
			env.WorkingDirectory = wd
		}

		var recommendations []string

		probeCtx, cancel := context.WithTimeout(ctx, environmentProbeTimeout)
		defer cancel()

		if runtime.GOOS == "darwin" {
			env.XcrunAvailable = commandSucceeds(probeCtx, "xcrun", "--version")
			if !env.XcrunAvailable {
				recommendations = append(recommendations, "Install Xcode or the Xcode Command Line Tools")
			}
		}

		if out, ok := commandOutput(probeCtx, "swift", "--version"); ok {
			env.SwiftAvailable = true
			env.SwiftVersion = firstLine(out)
		} else {
			recommendations = append(recommendations, "Install the Swift toolchain (Xcode on macOS, swift.org toolchain elsewhere)")
		}

		if _, err := exec.LookPath(lspCommand); err == nil {
			env.SourcekitAvailable = true
		} else {
			recommendations = append(recommendations, "Install sourcekit-lsp; on macOS it ships with full Xcode")
		}

		if deps.Compiler != nil {
			env.SwiftcAvailable = deps.Compiler.Available()
		}

		projectPath, _ := request.GetArguments()["project_path"].(string)
		if projectPath == "" {
			projectPath = env.WorkingDirectory
		}
		if projectPath != "" {
			inspectProject(projectPath, &env, &recommendations)
		}

		resp := environmentResponse{
			Success:         true,
			Environment:     env,
			Ready:           env.SwiftAvailable && env.SourcekitAvailable && len(recommendations) == 0,
			Recommendations: recommendations,
		}
		if resp.Recommendations == nil {
			resp.Recommendations = []string{}
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(resp), nil
	}

	s.AddTool(tool, handler)
}

func inspectProject(path string, env *environmentInfo, recommendations *[]string) {
	validated, err := project.ValidateProjectDir(path)
	if err != nil {
		*recommendations = append(*recommendations, "Provide a valid project directory for project-specific checks")
		return
	}

	root, err := project.FindRoot(validated)
	if err != nil {
		env.ProjectType = "none"
		*recommendations = append(*recommendations, "No Package.swift or Xcode project found; Swift tools need a project root")
		return
	}

	switch {
	case project.IsSwiftPMProject(root):
		env.ProjectType = "spm"
	case project.IsXcodeProject(root):
		env.ProjectType = "xcode"
	default:
		env.ProjectType = "unknown"
	}

	// File discovery honors the project's exclude_directories setting, so
	// the count reflects what the other tools will actually operate on.
	settings, err := project.LoadSettings(root)
	if err != nil {
		settings = project.DefaultSettings()
	}
	if files, err := project.ListSwiftFiles(root, settings); err == nil {
		env.SwiftFileCount = len(files)
	}

	env.IndexStoreAvailable = project.HasIndexStore(root)
	if !env.IndexStoreAvailable {
		env.BuildRequired = true
		*recommendations = append(*recommendations, "Run swift_build_index to build the index store for cross-file analysis")
	}
}

func commandSucceeds(ctx context.Context, name string, args ...string) bool {
	_, ok := commandOutput(ctx, name, args...)
	return ok
}

func commandOutput(ctx context.Context, name string, args ...string) (string, bool) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", false
	}
	return string(out), true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
