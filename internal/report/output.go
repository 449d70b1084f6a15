package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format string) error {
	var output string
	var err error

	switch format {
	case FormatJSON:
		output, err = JSON(r)
	case FormatCSV:
		output = CSV(r)
	case FormatTable, "":
		output = Table(r)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, output)
	return err
}

func JSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	return string(data) + "\n", err
}

func CSV(r *Report) string {
	s := r.Stats
	lines := []string{
		"run_id,submitted,completed,rejected,drop_rate,avg_wait_ms,avg_exec,max_full_ms,min_full_ms,elapsed_ms",
		fmt.Sprintf("%s,%d,%d,%d,%.4f,%.3f,%.3f,%.3f,%.3f,%.3f",
			r.RunID,
			s.Submitted,
			s.Completed,
			s.Rejected,
			s.DropRate(),
			ms(s.AvgWait),
			s.AvgExec,
			ms(s.MaxFullDuration),
			ms(s.MinFullDuration),
			ms(r.Elapsed)),
	}
	return strings.Join(lines, "\n") + "\n"
}

// Table renders per-queue saturation followed by the summary block.
func Table(r *Report) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%-8s %-16s", "QUEUE", "FULL(ms)"))
	lines = append(lines, strings.Repeat("-", 25))
	for i, d := range r.Stats.FullDurations {
		lines = append(lines, fmt.Sprintf("%-8d %-16.0f", i, ms(d)))
	}

	return strings.Join(lines, "\n") + "\n" + Summary(r)
}

// Summary is the block printed at the end of a run.
func Summary(r *Report) string {
	s := r.Stats
	var b strings.Builder

	sep := strings.Repeat("_", 44)
	fmt.Fprintln(&b, sep)
	fmt.Fprintf(&b, "Run: %s (%d queues x %d workers, capacity %d, %s)\n",
		r.RunID, r.Pool.QueueCount, r.Pool.ThreadsPerQueue, r.Pool.QueueCapacity, r.Pool.RejectPolicy)
	fmt.Fprintf(&b, "Average task wait time: %.0f ms\n", ms(s.AvgWait))
	fmt.Fprintf(&b, "Average task execution time: %.0f\n", s.AvgExec)
	fmt.Fprintf(&b, "Maximum time of a queue being full: %.0f ms\n", ms(s.MaxFullDuration))
	fmt.Fprintf(&b, "Minimum time of a queue being full: %.0f ms\n", ms(s.MinFullDuration))
	fmt.Fprintf(&b, "Tasks completed: %d/%d\n", s.Completed, s.Submitted)
	fmt.Fprintf(&b, "Tasks discarded: %d/%d (%.1f%%)\n", s.Rejected, s.Submitted, s.DropRate()*100)
	fmt.Fprintln(&b, sep)
	fmt.Fprintf(&b, "Total execution time: %.0f ms\n", ms(r.Elapsed))
	fmt.Fprintln(&b, sep)

	return b.String()
}
