package hostio

import (
	"bytes"
	"os"
	"os/exec"
	"testing"
)

// TestSetBeforeExitRunsBeforeOSExit exercises HTIF.Exit's os.Exit call
// through a subprocess, the standard way to test code whose "never
// returns" contract would otherwise kill the test binary (cf.
// TestCrasher-style tests for log.Fatal in the standard library).
func TestSetBeforeExitRunsBeforeOSExit(t *testing.T) {
	if os.Getenv("HTIF_TEST_SUBPROCESS") == "1" {
		console := NewConsole(devNull(t), &bytes.Buffer{})
		h := NewHTIF(console, 0x1000_0000)
		h.SetBeforeExit(func(code int32) {
			os.Stderr.WriteString("before-exit ran\n")
		})
		h.Exit(7)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestSetBeforeExitRunsBeforeOSExit")
	cmd.Env = append(os.Environ(), "HTIF_TEST_SUBPROCESS=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected an *exec.ExitError, got %v (stderr: %s)", err, stderr.String())
	}
	if exitErr.ExitCode() != 7 {
		t.Fatalf("subprocess exit code = %d, want 7", exitErr.ExitCode())
	}
	if !bytes.Contains(stderr.Bytes(), []byte("before-exit ran")) {
		t.Fatalf("beforeExit hook did not run before os.Exit; stderr: %s", stderr.String())
	}
}
