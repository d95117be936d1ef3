package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var taskID string
	var rawJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Fold a captured event stream into task state and print it",
		Long:  "Replay reads a captured text/event-stream body (use - for stdin), applies every event the way a live stream would and prints the resulting activity log and findings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open capture")
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			store := audit.NewStore(audit.StoreOptions{})
			if taskID != "" {
				store.Dispatch(audit.SetTask{Task: &audit.AgentTask{ID: taskID, Status: protocol.TaskStatusRunning}})
			}
			h := audit.NewEventHandler(store, taskID)

			parser := protocol.NewFrameParser()
			buf := make([]byte, 32*1024)
			for {
				n, err := r.Read(buf)
				if n > 0 {
					for _, ev := range parser.Feed(buf[:n]) {
						h.Apply(ev)
					}
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					return errors.Wrap(err, "read capture")
				}
			}

			st := store.Snapshot()
			out := cmd.OutOrStdout()
			if rawJSON {
				b, err := json.MarshalIndent(map[string]any{
					"task":     st.Task,
					"findings": st.Findings,
					"logs":     st.Logs,
					"stats":    audit.ComputeStats(st),
					"parser":   parser.Stats(),
				}, "", "  ")
				if err != nil {
					return errors.Wrap(err, "marshal replay")
				}
				_, _ = fmt.Fprintln(out, string(b))
				return nil
			}

			for _, l := range st.Logs {
				_, _ = fmt.Fprintln(out, formatLogItem(l, verbose))
			}
			if len(st.Findings) > 0 {
				_, _ = fmt.Fprintf(out, "\nFindings (%d):\n", len(st.Findings))
				for _, f := range st.Findings {
					_, _ = fmt.Fprintln(out, "  "+formatFinding(f))
				}
			}
			s := audit.ComputeStats(st)
			status := "unknown"
			if st.Task != nil {
				status = st.Task.Status
			}
			_, _ = fmt.Fprintf(out, "\nstatus=%s logs=%d tools=%d findings=%d errors=%d\n", status, s.Logs, s.ToolCalls, s.Findings, s.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task id to attribute the capture to")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Print the folded state as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print log content under each entry")
	return cmd
}
