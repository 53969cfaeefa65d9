package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/pailer/pailer-core/server/formatter"
)

//go:generate mockgen -destination=mock_manager_test.go -package=backend github.com/pailer/pailer-core/server/backend PackageManager

// BucketResult is the outcome of updating a single bucket
type BucketResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PackageManager performs the updates the auto-updater schedules.
// UpdateAllBuckets returns an error only when no bucket could be attempted; per-bucket failures are
// reported in the results. UpdateAllPackages returns the meaningful output lines of the update.
type PackageManager interface {
	UpdateAllBuckets(ctx context.Context) ([]BucketResult, error)
	UpdateAllPackages(ctx context.Context) ([]string, error)
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args in dir.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// packageLineMarkers select the lines of `scoop update *` output worth keeping.
var packageLineMarkers = []string{
	"Updating", "Updated", "up to date", "Installing", "Downloading", "Extracting", "Linking", "WARN", "ERROR",
}

const maxErrorLines = 10

// ScoopManager updates scoop buckets with git and packages with the scoop CLI.
type ScoopManager struct {
	root   string
	runner CommandRunner
	logger hclog.Logger
}

// NewScoopManager creates a manager for the scoop installation at root.
func NewScoopManager(root string, runner CommandRunner, logger hclog.Logger) *ScoopManager {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &ScoopManager{
		root:   root,
		runner: runner,
		logger: logger.Named("scoop"),
	}
}

// BucketsDir returns the directory holding the installed buckets.
func (m *ScoopManager) BucketsDir() string {
	return filepath.Join(m.root, "buckets")
}

// UpdateAllBuckets pulls every installed bucket, in name order.
func (m *ScoopManager) UpdateAllBuckets(ctx context.Context) ([]BucketResult, error) {
	entries, err := os.ReadDir(m.BucketsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	results := make([]BucketResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, m.updateBucket(ctx, name))
	}

	return results, nil
}

func (m *ScoopManager) updateBucket(ctx context.Context, name string) BucketResult {
	path := filepath.Join(m.BucketsDir(), name)

	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return BucketResult{
			Name:    name,
			Success: false,
			Message: fmt.Sprintf("Bucket '%s' is not a git repository and cannot be updated", name),
		}
	}

	output, err := m.runner.Run(ctx, path, "git", "pull", "--ff-only")
	if err != nil {
		m.logger.Warn("Bucket update failed", "bucket", name, "error", err.Error(), "output", string(output))
		return BucketResult{
			Name:    name,
			Success: false,
			Message: fmt.Sprintf("Failed to fetch updates for bucket '%s': %s", name, summarizeOutput(output, err)),
		}
	}

	if strings.Contains(string(output), "Already up to date") {
		return BucketResult{Name: name, Success: true, Message: fmt.Sprintf("Bucket '%s' is already up to date", name)}
	}

	m.logger.Debug("Bucket updated", "bucket", name)
	return BucketResult{Name: name, Success: true, Message: fmt.Sprintf("Successfully updated bucket '%s'", name)}
}

// UpdateAllPackages runs `scoop update *` and returns the progress lines of interest.
func (m *ScoopManager) UpdateAllPackages(ctx context.Context) ([]string, error) {
	output, err := m.runner.Run(ctx, m.root, "scoop", "update", "*")
	if err != nil {
		return nil, fmt.Errorf("package update failed: %s", summarizeOutput(output, err))
	}

	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, marker := range packageLineMarkers {
			if strings.Contains(trimmed, marker) {
				lines = append(lines, trimmed)
				break
			}
		}
	}

	for _, line := range lines {
		m.logger.Info(line)
	}

	if len(lines) == 0 {
		return []string{formatter.PackagesUpToDate}, nil
	}
	return lines, nil
}

// summarizeOutput joins the first non-empty output lines, falling back to err.
func summarizeOutput(output []byte, err error) string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
		if len(lines) == maxErrorLines {
			break
		}
	}

	if len(lines) == 0 {
		return err.Error()
	}
	return strings.Join(lines, "; ")
}
