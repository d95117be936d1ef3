package cmds

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var sf streamFlags
	var rawJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "tail TASK_ID",
		Short: "Follow a task's event stream and print its activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			so, creds, opts, err := loadStreamSettings(cmd, taskID, sf)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			so.Metrics, err = startMetrics(ctx, opts.MetricsAddr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var outMu sync.Mutex
			write := func(s string) {
				outMu.Lock()
				defer outMu.Unlock()
				_, _ = fmt.Fprintln(out, s)
			}

			store := audit.NewStore(audit.StoreOptions{MaxActionLog: -1})
			store.Dispatch(audit.SetTask{Task: &audit.AgentTask{ID: taskID, Status: protocol.TaskStatusRunning}})
			h := audit.NewEventHandler(store, taskID)

			if !rawJSON {
				printer := newLogPrinter(verbose, write)
				unsubscribe := store.Subscribe(func(st audit.State) {
					printer.observe(st.Logs)
				})
				defer unsubscribe()
			}

			ended := make(chan stream.Status, 1)
			next := stream.Handlers{
				OnStateChange: func(st stream.Status) {
					switch st.State {
					case stream.StateDisconnected, stream.StateFailed:
						select {
						case ended <- st:
						default:
						}
					}
				},
				OnReconnect: func(attempt int, delay time.Duration) {
					log.Warn().Int("attempt", attempt).Dur("delay", delay).Str("task", taskID).Msg("stream lost, reconnecting")
				},
			}
			if rawJSON {
				next.OnEvent = func(ev protocol.Event) {
					b, err := eventJSON(ev)
					if err != nil {
						log.Warn().Err(err).Msg("encode event")
						return
					}
					write(string(b))
				}
			}

			client := stream.New(so, creds, h.Handlers(next))
			client.Connect()
			defer client.Disconnect()

			var final stream.Status
			select {
			case final = <-ended:
			case <-ctx.Done():
				client.Disconnect()
				return nil
			}
			return tailResult(final, store.Snapshot())
		},
	}

	sf.register(cmd.Flags())
	cmd.Flags().BoolVar(&rawJSON, "json", false, "Print raw event JSON lines instead of activity")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print log content under each entry")
	return cmd
}

// tailResult maps how the stream ended to the command's error.
func tailResult(st stream.Status, state audit.State) error {
	if st.State == stream.StateFailed {
		if st.Err != nil {
			return errors.Wrap(st.Err, "stream failed")
		}
		return errors.New("stream failed")
	}
	if state.Task == nil {
		return nil
	}
	switch state.Task.Status {
	case protocol.TaskStatusFailed:
		msg := state.Task.ErrorMessage
		if msg == "" {
			msg = "no error message"
		}
		return errors.Errorf("task %s failed: %s", state.Task.ID, msg)
	case protocol.TaskStatusCancelled:
		return errors.Errorf("task %s was cancelled", state.Task.ID)
	}
	return nil
}
