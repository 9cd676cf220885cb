package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommandExecution(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = testVersion

	versionCmd := newVersionCmd()

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetArgs([]string{})

	if err := versionCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, testVersion) {
		t.Errorf("Expected output to contain %s, got %s", testVersion, output)
	}
	if !strings.Contains(output, "onto-mcp version") {
		t.Errorf("Expected output to contain 'onto-mcp version', got %s", output)
	}
	if !strings.Contains(output, runtime.Version()) {
		t.Errorf("Expected output to contain the Go runtime version, got %s", output)
	}
	if !strings.Contains(output, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Expected output to contain the platform, got %s", output)
	}
}
