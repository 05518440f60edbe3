package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"path"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// sshConnectionFailed is the exit status ssh reserves for its own failures.
const sshConnectionFailed = 255

// Runner executes a command, streaming its standard output into stdout.
type Runner interface {
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) error
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// Run executes the command. Standard error is captured into the returned error.
func (ExecRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &CommandError{
			Err:     err,
			Code:    exitCode,
			Stderr:  strings.TrimSpace(stderr.String()),
			Command: name,
		}
	}
	return nil
}

// CommandError describes a failed command.
type CommandError struct {
	Err     error
	Code    int
	Stderr  string
	Command string
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return e.Command + ": " + e.Stderr
	}
	return e.Command + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode returns the exit status of the command, -1 when it did not exit.
func (e *CommandError) ExitCode() int { return e.Code }

// SSHOptions configures an SSHStore.
type SSHOptions struct {
	Host string
	User string
	// BaseDir holds one directory per bucket on the remote host.
	BaseDir string
	Retry   RetryPolicy
}

// SSHStore reads objects from a mirror host over ssh.
type SSHStore struct {
	catalog domain.Catalog
	runner  Runner
	opts    SSHOptions
}

// NewSSHStore creates an SSHStore.
func NewSSHStore(catalog domain.Catalog, runner Runner, opts SSHOptions) *SSHStore {
	return &SSHStore{catalog: catalog, runner: runner, opts: opts}
}

// Locate returns host:path.
func (s *SSHStore) Locate(req domain.Requirement) (string, error) {
	p, err := s.remotePath(req)
	if err != nil {
		return "", err
	}
	return s.target() + ":" + p, nil
}

// ContentHash runs md5sum on the remote host.
func (s *SSHStore) ContentHash(ctx context.Context, req domain.Requirement) (domain.Digest, error) {
	p, err := s.remotePath(req)
	if err != nil {
		return domain.Digest{}, err
	}
	loc := s.target() + ":" + p
	return retry(ctx, s.policy(), func() (domain.Digest, error) {
		var out bytes.Buffer
		if err := s.runner.Run(ctx, &out, "ssh", s.args("md5sum", p)...); err != nil {
			return domain.Digest{}, classifySSH(err, loc)
		}
		sum, _, _ := strings.Cut(strings.TrimSpace(out.String()), " ")
		d, err := domain.NewDigest(domain.MD5, sum)
		if err != nil {
			return domain.Digest{}, backoff.Permanent(zerr.With(err, "locator", loc))
		}
		return d, nil
	})
}

// Fetch streams the remote file with cat. It is not retried once output may have been written.
func (s *SSHStore) Fetch(ctx context.Context, req domain.Requirement, w io.Writer) error {
	p, err := s.remotePath(req)
	if err != nil {
		return err
	}
	loc := s.target() + ":" + p
	if err := s.runner.Run(ctx, w, "ssh", s.args("cat", p)...); err != nil {
		err = classifySSH(err, loc)
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}
		return err
	}
	return nil
}

func (s *SSHStore) policy() RetryPolicy {
	return s.opts.Retry
}

func (s *SSHStore) target() string {
	if s.opts.User != "" {
		return s.opts.User + "@" + s.opts.Host
	}
	return s.opts.Host
}

func (s *SSHStore) remotePath(req domain.Requirement) (string, error) {
	bucket, key, err := objectKey(s.catalog, req)
	if err != nil {
		return "", err
	}
	return path.Join(s.opts.BaseDir, bucket.DirName(), key), nil
}

func (s *SSHStore) args(command, p string) []string {
	return []string{"-o", "BatchMode=yes", s.target(), command + " -- " + shellQuote(p)}
}

// classifySSH retries connection failures and treats a failing remote command as a missing object.
func classifySSH(err error, loc string) error {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) && coded.ExitCode() != sshConnectionFailed && coded.ExitCode() > 0 {
		return notFound(err, "remote command failed", loc)
	}
	return transport(err, "ssh failed", loc)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
