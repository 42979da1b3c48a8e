// Package observability provides logging and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jonathan/simplejsonspider/internal/detect"
	"github.com/jonathan/simplejsonspider/internal/output"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxPreviewLines is the number of body lines shown in a preview
	maxPreviewLines = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintResolved outputs a summary of a saved payload and a short preview of
// the written body.
func (p *Printer) PrintResolved(source string, res *output.Resolved) {
	if res == nil {
		return
	}

	var sb strings.Builder
	if source != "" {
		sb.WriteString(fmt.Sprintf("Source:  %s\n", source))
	}
	sb.WriteString(fmt.Sprintf("Type:    %s\n", res.Type))
	sb.WriteString(fmt.Sprintf("File:    %s\n", res.Name))
	sb.WriteString(fmt.Sprintf("Size:    %s\n", humanize.Bytes(uint64(len(res.Body)))))
	if res.TemplateErr != nil {
		sb.WriteString("Name:    template not applied, used default\n")
	}

	preview := previewLines(res.Body, maxPreviewLines)
	if preview != "" {
		sb.WriteString("\n")
		sb.WriteString(preview)
	}

	p.printBox("SAVED PAYLOAD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDetection outputs the classification of a local file.
func (p *Printer) PrintDetection(path string, t detect.Type, size int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File:       %s\n", path))
	sb.WriteString(fmt.Sprintf("Size:       %s\n", humanize.Bytes(uint64(size))))
	sb.WriteString(fmt.Sprintf("Type:       %s\n", t))
	sb.WriteString(fmt.Sprintf("Extension:  %s\n", detect.Extension(t)))
	sb.WriteString(fmt.Sprintf("Prettify:   %t", detect.ShouldPrettify(t)))

	p.printBox("CONTENT DETECTION", sb.String())
}

// previewLines returns the first n lines of body, noting how many were cut.
func previewLines(body string, n int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	lines := strings.Split(body, "\n")
	if len(lines) <= n {
		return body + "\n"
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n... and %d more lines\n", len(lines)-n)
}
