package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sys/unix"

	"github.com/swiftlens/swiftlens/internal/project"
)

const (
	defaultBuildTimeout = 60 * time.Second
	maxBuildTimeout     = 300 * time.Second
	maxBuildOutput      = 16 * 1024
)

type buildIndexResponse struct {
	Success     bool    `json:"success"`
	ProjectPath string  `json:"project_path"`
	ProjectType string  `json:"project_type,omitempty"`
	IndexPath   string  `json:"index_path,omitempty"`
	BuildOutput string  `json:"build_output,omitempty"`
	BuildTime   float64 `json:"build_time_seconds"`
}

// RegisterBuildIndexTool registers the swift_build_index tool.
func RegisterBuildIndexTool(s ToolServer, deps *Deps) {
	tool := mcp.NewTool("swift_build_index",
		mcp.WithDescription(`Build or rebuild the project's index store so sourcekit-lsp can answer cross-file queries.

Runs a build with the index store enabled and records the build time in the project settings. Cross-file definition and reference lookups return incomplete results until this has been done at least once, and after large refactors the index may need rebuilding.`),
		mcp.WithString("project_path",
			mcp.Description("Project root to build; defaults to the working directory")),
		mcp.WithNumber("timeout",
			mcp.Description("Maximum build time in seconds (default 60, max 300)")),
		mcp.WithString("scheme",
			mcp.Description("Xcode scheme to build; ignored for Swift Package Manager projects")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		projectPath, _ := args["project_path"].(string)
		if projectPath == "" {
			wd, err := os.Getwd()
			if err != nil {
				return toolError(errInternal, "cannot determine working directory"), nil
			}
			projectPath = wd
		}

		timeout := defaultBuildTimeout
		if _, ok := args["timeout"]; ok {
			secs, err := intArg(args, "timeout")
			if err != nil {
				return toolError(errValidation, "timeout must be an integer number of seconds"), nil
			}
			switch {
			case secs < 1:
				timeout = defaultBuildTimeout
			case time.Duration(secs)*time.Second > maxBuildTimeout:
				timeout = maxBuildTimeout
			default:
				timeout = time.Duration(secs) * time.Second
			}
		}
		scheme, _ := args["scheme"].(string)

		rec := deps.Recorder.Begin("swift_build_index", projectPath, "")
		fail := func(errType, msg string) (*mcp.CallToolResult, error) {
			deps.Recorder.End(rec, errType, msg)
			return toolError(errType, msg), nil
		}

		validated, err := project.ValidateProjectDir(projectPath)
		if err != nil {
			return fail(classify(err), err.Error())
		}
		root, err := project.FindRoot(validated)
		if err != nil {
			return fail(errValidation, fmt.Sprintf("no Swift project found at %s", validated))
		}
		rec.ProjectRoot = root

		unlock, err := acquireBuildLock(root)
		if err != nil {
			return fail(errBuild, err.Error())
		}
		defer unlock()

		buildCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var cmd *exec.Cmd
		projectType := "spm"
		switch {
		case project.IsSwiftPMProject(root):
			cmd = exec.CommandContext(buildCtx, "swift", "build",
				"-Xswiftc", "-index-store-path",
				"-Xswiftc", ".build/index/store")
		case project.IsXcodeProject(root):
			projectType = "xcode"
			xcArgs := []string{"build",
				"-derivedDataPath", ".build",
				"COMPILER_INDEX_STORE_ENABLE=YES"}
			if scheme != "" {
				xcArgs = append(xcArgs, "-scheme", scheme)
			}
			cmd = exec.CommandContext(buildCtx, "xcodebuild", xcArgs...)
		default:
			return fail(errValidation, fmt.Sprintf("%s is neither a Swift Package Manager nor an Xcode project", root))
		}
		cmd.Dir = root

		start := time.Now()
		out, err := cmd.CombinedOutput()
		elapsed := time.Since(start)

		if err != nil {
			if buildCtx.Err() == context.DeadlineExceeded {
				return fail(errBuild, fmt.Sprintf("build timed out after %s", timeout))
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				deps.Recorder.End(rec, errBuild, "build failed")
				return jsonResult(struct {
					buildIndexResponse
					Error     string `json:"error"`
					ErrorType string `json:"error_type"`
				}{
					buildIndexResponse: buildIndexResponse{
						ProjectPath: root,
						ProjectType: projectType,
						BuildOutput: tailString(out, maxBuildOutput),
						BuildTime:   elapsed.Seconds(),
					},
					Error:     fmt.Sprintf("build failed with exit code %d", exitErr.ExitCode()),
					ErrorType: errBuild,
				}), nil
			}
			return fail(errEnvironment, fmt.Sprintf("cannot run build: %v", err))
		}

		if err := project.RecordIndexBuild(root, time.Now()); err != nil {
			deps.Log.Warn("failed to record index build", "root", root, "error", err)
		}

		indexPath := project.IndexStorePath(root)
		if _, err := os.Stat(indexPath); err != nil {
			indexPath = ""
		}

		deps.Recorder.End(rec, "", "")
		return jsonResult(buildIndexResponse{
			Success:     true,
			ProjectPath: root,
			ProjectType: projectType,
			IndexPath:   indexPath,
			BuildOutput: tailString(out, maxBuildOutput),
			BuildTime:   elapsed.Seconds(),
		}), nil
	}

	s.AddTool(tool, handler)
}

// acquireBuildLock takes a non-blocking exclusive lock so concurrent builds
// of the same project do not trample each other.
func acquireBuildLock(root string) (func(), error) {
	lockDir := filepath.Join(root, ".build")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create build directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(lockDir, ".index-build.lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open build lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.New("another build is already in progress for this project")
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

func tailString(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
