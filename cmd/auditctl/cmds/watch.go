package cmds

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/auditctl/pkg/audit"
	"github.com/go-go-golems/auditctl/pkg/protocol"
	"github.com/go-go-golems/auditctl/pkg/stream"
	"github.com/go-go-golems/auditctl/pkg/tui"
	"github.com/go-go-golems/auditctl/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd() *cobra.Command {
	var sf streamFlags
	var altScreen bool
	var maxLogs int

	cmd := &cobra.Command{
		Use:   "watch TASK_ID",
		Short: "Interactive terminal UI for a running audit task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			so, creds, opts, err := loadStreamSettings(cmd, taskID, sf)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			so.Metrics, err = startMetrics(ctx, opts.MetricsAddr)
			if err != nil {
				return err
			}

			bus, err := tui.NewInMemoryBus()
			if err != nil {
				return err
			}

			store := audit.NewStore(audit.StoreOptions{MaxActionLog: maxLogs})
			store.Dispatch(audit.SetTask{Task: &audit.AgentTask{ID: taskID, Status: protocol.TaskStatusRunning}})
			gen := tui.NewGeneration()
			client := stream.New(so, creds, tui.StreamHooks(bus.Publisher, taskID, gen))

			tui.RegisterStoreApplier(bus, store, audit.NewEventHandler(store, taskID), gen)
			tui.RegisterUIActionRunner(bus, store, client, gen)

			model := models.NewRootModel(store, models.RootOptions{
				Title: "auditctl " + taskID,
				Publish: func(req tui.ActionRequest) error {
					return tui.PublishAction(bus.Publisher, req)
				},
			})
			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				select {
				case <-bus.Running():
				case <-egCtx.Done():
					return nil
				}
				client.Connect()
				<-egCtx.Done()
				client.Disconnect()
				return nil
			})
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "watch")
			}
			return nil
		},
	}

	sf.register(cmd.Flags())
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	cmd.Flags().IntVar(&maxLogs, "max-actions", 10000, "Bound on the recorded action log (negative disables recording)")
	return cmd
}
