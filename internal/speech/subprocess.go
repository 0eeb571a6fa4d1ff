package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

// execRunner runs the command with stdin wired before start. On
// cancellation the process gets an interrupt and a short grace period
// before it is killed.
func execRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if s := strings.TrimSpace(stderr.String()); s != "" {
				return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, s)
			}
			return nil, fmt.Errorf("%s failed: %w", name, err)
		}
		return stdout.Bytes(), nil

	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			_ = cmd.Process.Kill()
			<-done
		}
		return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}
}
