package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// Cloner fetches a repository into a destination directory. It is injected so
// tests can materialize fixture trees without a network.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dest string) error
}

var (
	// validGitURLPattern matches valid git URLs (https, ssh, file)
	validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)

	// dangerousCharsPattern matches characters that could be used for
	// command injection
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// validateGitURL validates a git URL to prevent command injection.
func validateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}

	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}

	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				return fmt.Errorf("git URL should not contain embedded password")
			}
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		if !validGitURLPattern.MatchString(gitURL) {
			return fmt.Errorf("invalid SSH git URL format")
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "file://") {
		return nil
	}

	return fmt.Errorf("unsupported git URL protocol: must be https://, git@, ssh://, or file://")
}

// GitCloner clones with the git binary: shallow, single-branch, quiet, to
// bound transfer cost.
type GitCloner struct{}

// Clone runs git clone into dest. The URL is validated first to prevent
// command injection.
func (GitCloner) Clone(ctx context.Context, repoURL, dest string) error {
	if err := validateGitURL(repoURL); err != nil {
		return fmt.Errorf("invalid git URL: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", "--quiet", repoURL, dest)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}
