// Package formatter renders auto-update results as the progress lines and summaries shown to users
// and stored in the update history.
package formatter

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Result markers
const (
	MarkSuccess = "✓"
	MarkFailure = "✗"
)

// Operation results as stored in the update history
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// Progress titles and fixed messages
const (
	TitleBuckets         = "Updating buckets..."
	TitlePackages        = "Updating packages..."
	StartBuckets         = "Starting automatic bucket update..."
	StartPackages        = "Starting automatic package update..."
	PackagesSucceeded    = "Automatic package update completed successfully"
	PackagesUpToDate     = "All packages are up to date."
	maxErrorMessageChars = 500
)

// BucketLine formats the outcome of a single bucket update.
func BucketLine(name string, success bool, message string) string {
	if success {
		return fmt.Sprintf("%s Updated bucket: %s", MarkSuccess, name)
	}
	return fmt.Sprintf("%s Failed to update %s: %s", MarkFailure, name, truncateText(message, maxErrorMessageChars))
}

// BucketSummary formats the completion message of a bucket update run.
func BucketSummary(successes, total int) string {
	return fmt.Sprintf("Bucket update completed: %d of %d succeeded", successes, total)
}

// BucketFailure formats the message for a bucket update that could not run at all.
func BucketFailure(err error) string {
	return fmt.Sprintf("Bucket update failed: %v", err)
}

// PackageFailure formats the completion message of a failed package update.
func PackageFailure(err error) string {
	return fmt.Sprintf("Automatic package update failed: %v", err)
}

// ErrorLine formats an error as a progress line.
func ErrorLine(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// OperationResult classifies a run by how many of its steps succeeded.
// A run with no steps counts as a success.
func OperationResult(successes, total int) string {
	switch {
	case successes >= total:
		return ResultSuccess
	case successes > 0:
		return ResultPartial
	default:
		return ResultFailed
	}
}

// CountUpdatedPackages counts lines reporting an updated package. The count is at least 1, since a
// successful run with nothing to update still counts as one successful operation.
func CountUpdatedPackages(lines []string) int {
	count := 0
	for _, line := range lines {
		if strings.Contains(line, "Updated") && !strings.Contains(line, "up to date") {
			count++
		}
	}

	if count == 0 {
		return 1
	}
	return count
}

// CountPackageLines returns the total reported for a package run, at least 1.
func CountPackageLines(lines []string) int {
	if len(lines) == 0 {
		return 1
	}
	return len(lines)
}

// FormatTime formats a timestamp for status output.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

// truncateText truncates text to maxLen characters, adding "..." if truncated
func truncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxLen]) + "..."
}
