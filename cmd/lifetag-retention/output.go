package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type tokenOutput struct {
	Token     string `json:"token" yaml:"token"`
	ExpiresAt string `json:"expires_at" yaml:"expires_at"`
}

// encode handles the structured formats.  It reports false for text.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeStatus(w io.Writer, format string, st types.RetentionStatusResponse) error {
	if done, err := encode(w, format, st); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "retention days\t%s\n", limitText(st.Policy.RetentionDays))
	fmt.Fprintf(tw, "max logs per profile\t%s\n", limitText(st.Policy.MaxLogsPerProfile))
	fmt.Fprintf(tw, "batch size\t%d\n", st.Policy.BatchSize)
	fmt.Fprintf(tw, "cleanup running\t%t\n", st.Status.IsCleanupRunning)
	fmt.Fprintf(tw, "last cleanup\t%s\n", orDash(st.Status.LastCleanupAt))
	fmt.Fprintf(tw, "needs cleanup\t%t\n", st.Status.NeedsCleanup)
	fmt.Fprintf(tw, "total entries\t%d\n", st.Current.TotalEntries)
	fmt.Fprintf(tw, "expired entries\t%d\n", st.Current.ExpiredEntries)
	fmt.Fprintf(tw, "profiles over limit\t%d\n", st.Current.ProfilesOverLimit)
	fmt.Fprintf(tw, "excess entries\t%d\n", st.Current.ExcessEntries)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.RecentRuns) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tSUCCESS\tDELETED\tPROFILES\tMS\tERRORS")
	for _, r := range st.RecentRuns {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%d\n",
			r.Timestamp, r.Success, r.DeletedCount, r.ProfilesProcessed, r.ExecutionTimeMs, len(r.Errors))
	}
	return tw.Flush()
}

func writeRun(w io.Writer, format string, run types.RetentionRun) error {
	if done, err := encode(w, format, run); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "success\t%t\n", run.Success)
	fmt.Fprintf(tw, "deleted\t%d\n", run.DeletedCount)
	fmt.Fprintf(tw, "profiles processed\t%d\n", run.ProfilesProcessed)
	fmt.Fprintf(tw, "execution time\t%dms\n", run.ExecutionTimeMs)
	fmt.Fprintf(tw, "finished at\t%s\n", run.Timestamp)
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, e := range run.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	return nil
}

func writeToken(w io.Writer, format string, out tokenOutput) error {
	if done, err := encode(w, format, out); done {
		return err
	}
	_, err := fmt.Fprintln(w, out.Token)
	return err
}

func limitText(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
