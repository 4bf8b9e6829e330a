package output

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jbweber/vmexec/api/v1alpha1"
	"github.com/jbweber/vmexec/internal/disk"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatInstance formats a single Instance as a table row.
func (f *TableFormatter) FormatInstance(inst *v1alpha1.Instance) (string, error) {
	return f.table("NAME\tARCH\tPHASE\tPID\tBOOT IMAGE\tREASON\tAGE", func(w *tabwriter.Writer) {
		pid := "-"
		if inst.Status.PID > 0 {
			pid = strconv.Itoa(inst.Status.PID)
		}

		age := "-"
		if !inst.Status.StartTime.IsZero() {
			age = formatAge(time.Since(inst.Status.StartTime.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			dash(inst.Name), dash(inst.Spec.Arch), dash(string(inst.Status.Phase)),
			pid, dash(inst.Spec.BootImage), dash(inst.Status.Reason), age)
	}), nil
}

// FormatArches formats the architectures as a table.
func (f *TableFormatter) FormatArches(arches []ArchInfo) (string, error) {
	if len(arches) == 0 {
		return "No architectures found\n", nil
	}

	return f.table("ARCH\tEXECUTABLE\tSUPPORTED\tPATH", func(w *tabwriter.Writer) {
		for _, a := range arches {
			supported := "no"
			if a.Supported {
				supported = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Executable, supported, dash(a.Path))
		}
	}), nil
}

// FormatImageInfo formats image details as a table.
func (f *TableFormatter) FormatImageInfo(info *disk.ImageInfo) (string, error) {
	return f.table("FILE\tFORMAT\tVIRTUAL SIZE\tDISK SIZE\tBACKING FILE", func(w *tabwriter.Writer) {
		backing := "-"
		if info.HasBacking() {
			backing = fmt.Sprintf("%s (%s)", info.BackingFilename, dash(string(info.BackingFormat)))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Filename, info.Format, formatBytes(info.VirtualSize), formatBytes(info.ActualSize), backing)
	}), nil
}

// FormatChecks formats preflight results as a table.
func (f *TableFormatter) FormatChecks(checks []Check) (string, error) {
	return f.table("CHECK\tSTATUS\tDETAIL", func(w *tabwriter.Writer) {
		for _, c := range checks {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Status, dash(c.Detail))
		}
	}), nil
}

func (f *TableFormatter) table(header string, rows func(w *tabwriter.Writer)) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, header)
	}
	rows(w)

	_ = w.Flush()
	return buf.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatBytes formats a byte count with binary units.
// Examples: "512B", "1.5KiB", "10.0GiB"
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
