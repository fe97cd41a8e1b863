package acceptance

import (
	"fmt"
	"os"
	"os/exec"
	"testing"
)

// binaryPath is where TestMain places the freshly built binary, relative to
// this package directory.
const binaryPath = "../../bin/agentlint"

// TestMain builds the agentlint binary once for all acceptance tests
func TestMain(m *testing.M) {
	build := exec.Command("go", "build", "-o", "bin/agentlint", "./cmd/agentlint")
	build.Dir = "../.."
	if output, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build agentlint: %v\n%s", err, output)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}
