package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"curation-service/internal/apperr"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
)

// Per-type run limits for external commands.
const (
	ScraperTimeout   = 2 * time.Hour
	PermalinkTimeout = 5 * time.Minute
	BackfillTimeout  = 2 * time.Hour
)

const outputTailBytes = 2000

// Command runs a job type through an external program, such as the scraper or
// the LLM scorer. The program gets the job params as flags and JOB_ID in its
// environment. A cancel during the run is honoured at the checkpoint after it.
type Command struct {
	argv    []string
	timeout time.Duration
	log     *logger.Logger
}

// NewCommand parses a whitespace-separated command line. An empty line yields
// a Command that fails every job as misconfigured.
func NewCommand(cmdline string, timeout time.Duration, log *logger.Logger) *Command {
	return &Command{argv: strings.Fields(cmdline), timeout: timeout, log: log.With("component", "command")}
}

func (c *Command) Run(ctx context.Context, job *entity.Job, params entity.JobParams, cp *Checkpoint) error {
	if len(c.argv) == 0 {
		return apperr.Upstream("no command configured for "+string(job.Type), false, nil)
	}
	args, err := commandArgs(params)
	if err != nil {
		return err
	}
	if err := cp.Check(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	argv := append(append([]string{}, c.argv[1:]...), args...)
	cmd := exec.CommandContext(runCtx, c.argv[0], argv...)
	cmd.Env = append(os.Environ(), "JOB_ID="+job.ID.String())
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	c.log.Info("command finished",
		"job_id", job.ID,
		"command", c.argv[0],
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", runErr == nil,
	)

	// a job cancelled while the command ran stays cancelled whatever the result
	if err := cp.Check(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return apperr.Upstream(fmt.Sprintf("%s timed out after %s", job.Type, c.timeout), true, runErr)
	case ctx.Err() != nil:
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return apperr.Upstream(fmt.Sprintf("%s exited with code %d: %s", job.Type, exitErr.ExitCode(), tail(out.String())), true, nil)
	}
	// the binary could not be started at all
	return apperr.Upstream("start "+c.argv[0], false, runErr)
}

func commandArgs(params entity.JobParams) ([]string, error) {
	switch p := params.(type) {
	case entity.ScraperParams:
		return []string{"--feed-type", p.FeedType}, nil
	case entity.PermalinkParams:
		args := []string{"--url", strings.TrimSpace(p.URL)}
		if p.PostID != "" {
			args = append(args, "--post-id", p.PostID)
		}
		return args, nil
	case entity.BackfillParams:
		return []string{"--dimension", p.Dimension}, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("no command arguments for %T", params))
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= outputTailBytes {
		return s
	}
	return "..." + s[len(s)-outputTailBytes:]
}
