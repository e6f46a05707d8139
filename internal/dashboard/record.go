package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Execution statuses.
const (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusError      = "error"
)

// ExecutionRecord is one tool invocation as shown on the dashboard.
type ExecutionRecord struct {
	ID          string    `json:"id"`
	ToolName    string    `json:"tool_name"`
	ProjectRoot string    `json:"project_root,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  float64   `json:"duration_ms"`
	ErrorType   string    `json:"error_type,omitempty"`
	ErrorMsg    string    `json:"error_message,omitempty"`
}

// NewRecord starts an in-progress record for a tool invocation.
func NewRecord(tool, root, file string) ExecutionRecord {
	return ExecutionRecord{
		ID:          uuid.New().String(),
		ToolName:    tool,
		ProjectRoot: root,
		FilePath:    file,
		Status:      StatusInProgress,
		StartedAt:   time.Now().UTC(),
	}
}

// Finish stamps the record with its terminal status and duration.
func (r ExecutionRecord) Finish(errType, errMsg string) ExecutionRecord {
	r.DurationMS = float64(time.Since(r.StartedAt)) / float64(time.Millisecond)
	if errMsg == "" {
		r.Status = StatusSuccess
	} else {
		r.Status = StatusError
		r.ErrorType = errType
		r.ErrorMsg = errMsg
	}
	return r
}

// Stats is the aggregate view the dashboard's header shows.
type Stats struct {
	TotalExecutions int            `json:"total_executions"`
	Errors          int            `json:"errors"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
	ByTool          map[string]int `json:"by_tool"`
}
