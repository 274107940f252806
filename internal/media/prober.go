package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFProbe reads media metadata with the ffprobe CLI.
type FFProbe struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFProbe constructs a Prober that shells out to ffprobe.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFProbe{
		Binary:  binary,
		Args:    []string{"-v", "error", "-show_entries", "format=duration", "-of", "json"},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Probe runs ffprobe against path and returns the container duration in seconds.
func (p *FFProbe) Probe(ctx context.Context, path string) (Metadata, error) {
	if p == nil {
		return Metadata{}, errors.New("ffprobe not configured")
	}
	run := p.Run
	if run == nil {
		run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append([]string{}, p.Args...)
	args = append(args, path)

	out, err := run(execCtx, p.Binary, args...)
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	raw := strings.TrimSpace(payload.Format.Duration)
	if raw == "" || raw == "N/A" {
		return Metadata{}, errors.New("ffprobe reported no duration")
	}
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	if duration < 0 {
		return Metadata{}, fmt.Errorf("ffprobe reported negative duration %v", duration)
	}

	return Metadata{Duration: duration}, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
