package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"valorant-stats/metrics"
	"valorant-stats/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ModelRunner runs one analytical computation and returns what it wrote to stdout.
type ModelRunner interface {
	Run(ctx context.Context, script string, args ...string) ([]byte, error)
}

// ScriptError is a model script that exited non-zero.
type ScriptError struct {
	Script   string
	ExitCode int
	Stderr   string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s exited with code %d", e.Script, e.ExitCode)
}

const maxRecordedArgs = 2048

// ScriptRunner shells out to an interpreter, e.g. "python data_miner.py <puuid>".
type ScriptRunner struct {
	Interpreter string
	Dir         string
	Timeout     time.Duration
	DB          *gorm.DB // optional, records a ModelRun per invocation
	Log         *logrus.Logger
}

func NewScriptRunner(interpreter, dir string, timeout time.Duration, db *gorm.DB, log *logrus.Logger) *ScriptRunner {
	return &ScriptRunner{Interpreter: interpreter, Dir: dir, Timeout: timeout, DB: db, Log: log}
}

func (r *ScriptRunner) Run(ctx context.Context, script string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Interpreter, append([]string{script}, args...)...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := r.Log.WithField("script", script)
	log.Info("▶️ [ModelRunner] starting script")

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if stderr.Len() > 0 {
		log.Debugf("[ModelRunner] stderr:\n%s", stderr.String())
	}

	err := r.classify(ctx, script, runErr, stderr.String())

	status := models.ModelRunSucceeded
	if err != nil {
		status = models.ModelRunFailed
	}
	metrics.ModelRunDuration.WithLabelValues(script, status).Observe(elapsed.Seconds())
	r.record(script, args, status, runErr, err, elapsed)

	if err != nil {
		log.WithError(err).Errorf("❌ [ModelRunner] script failed after %s", elapsed.Round(time.Millisecond))
		return nil, err
	}
	log.Infof("✅ [ModelRunner] script finished in %s", elapsed.Round(time.Millisecond))
	return stdout.Bytes(), nil
}

func (r *ScriptRunner) classify(ctx context.Context, script string, runErr error, stderr string) error {
	if runErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("script %s: %w", script, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return &ScriptError{Script: script, ExitCode: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("start script %s: %w", script, runErr)
}

func (r *ScriptRunner) record(script string, args []string, status string, runErr, err error, elapsed time.Duration) {
	if r.DB == nil {
		return
	}

	run := models.ModelRun{
		ID:         uuid.NewString(),
		Script:     script,
		Args:       truncate(strings.Join(args, " "), maxRecordedArgs),
		Status:     status,
		DurationMS: elapsed.Milliseconds(),
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		run.ExitCode = exitErr.ExitCode()
	}
	if err != nil {
		run.Error = err.Error()
	}

	if dbErr := r.DB.Create(&run).Error; dbErr != nil {
		r.Log.WithField("script", script).Warnf("⚠️ [ModelRunner] could not record run: %v", dbErr)
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
