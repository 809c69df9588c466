package logger

import (
	"fmt"
	"os"
	"path/filepath"
)

// StringListReport is a titled list of lines written as a plain text report.
type StringListReport struct {
	Title string
	Items []string
}

// ReportFileName returns the file name a report with the given title is
// written to, e.g. unresolved-loose_files.txt.
func ReportFileName(title string) string {
	if title == "" {
		title = "untitled"
	}
	// Replace spaces and special characters with underscores
	safeTitle := ""
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			safeTitle += string(r)
		} else {
			safeTitle += "_"
		}
	}
	return fmt.Sprintf("unresolved-%s.txt", safeTitle)
}

// WriteListToFile appends the report items to a text file under dir, one
// per line, followed by an empty separator line. It returns the file path.
func WriteListToFile(dir string, report StringListReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating base path: %w", err)
	}

	reportFullPath := filepath.Join(dir, ReportFileName(report.Title))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, item := range report.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}

	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to file: %w", err)
	}

	return reportFullPath, nil
}
