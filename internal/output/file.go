package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/torosent/ttfr/internal/config"
)

// WriteReport renders a report in the given format.
func WriteReport(w io.Writer, format config.ReportFormat, report Report) error {
	switch format {
	case config.ReportFormatJSON, "":
		return PrintJSONReport(w, report)
	case config.ReportFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	case config.ReportFormatHTML:
		return GenerateHTMLReport(w, report)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteReportFile writes the report to path, creating parent directories.
func WriteReportFile(path string, format config.ReportFormat, report Report) (err error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file: %w", cerr)
		}
	}()
	if err := WriteReport(f, format, report); err != nil {
		return fmt.Errorf("write %s report: %w", format, err)
	}
	return nil
}
