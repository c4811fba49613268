package procspawn

import (
	"context"
	"strings"
	"testing"
)

func TestRunCapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", res.ExitCode)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "hello" {
		t.Fatalf("Stdout = %q, want %q", got, "hello")
	}
}

func TestRunReportsNonZeroExitWithoutError(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "exit 7")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", res.ExitCode)
	}
}

func TestRunRejectsMissingBinary(t *testing.T) {
	if _, err := Run(context.Background(), "substrate-definitely-not-a-real-binary"); err == nil {
		t.Fatal("Run with a missing binary unexpectedly succeeded")
	}
}
