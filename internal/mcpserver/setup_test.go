package mcpserver

import (
	"testing"

	"github.com/swiftlens/swiftlens/internal/logging"
	"github.com/swiftlens/swiftlens/internal/mcpserver/tools"
)

func TestNewServer(t *testing.T) {
	deps := &tools.Deps{Log: logging.Nop()}

	s := NewServer("test", deps)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}
