package removal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"
)

type ExecConfig struct {
	Command string
	// Args replaces the default rembg arguments when non-nil. The image is
	// always written to stdin and read back from stdout.
	Args    []string
	Model   string
	Timeout time.Duration
}

// ExecRemover pipes the image through a command line tool, by default
// "rembg i -m <model> - -".
type ExecRemover struct {
	command string
	args    []string
	timeout time.Duration
}

// DefaultExecArgs returns the rembg CLI arguments for stdin/stdout use.
func DefaultExecArgs(model string) []string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return []string{"i", "-m", model, "-", "-"}
}

func NewExecRemover(cfg ExecConfig) (*ExecRemover, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = DefaultExecCommand
	}

	args := cfg.Args
	if args == nil {
		args = DefaultExecArgs(cfg.Model)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &ExecRemover{
		command: command,
		args:    append([]string(nil), args...),
		timeout: timeout,
	}, nil
}

func (r *ExecRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("image is required")
	}

	payload, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", r.command, ctxErr)
		}
		if msg := truncate(stderr.String(), 500); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", r.command, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", r.command, err)
	}

	return decodeResult(stdout.Bytes())
}

func (r *ExecRemover) Check(_ context.Context) error {
	if _, err := exec.LookPath(r.command); err != nil {
		return fmt.Errorf("remover command not available: %w", err)
	}
	return nil
}

func (r *ExecRemover) String() string {
	return fmt.Sprintf("exec(%s %s)", r.command, strings.Join(r.args, " "))
}
