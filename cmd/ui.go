package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/session"
	"github.com/FluidXR/adbinfo/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:               "ui",
	Short:             "Open the terminal view",
	PersistentPreRunE: requireDeps(),
	RunE:              runUI,
}

var errViewClosed = errors.New("terminal view closed")

// trackedController lets the command wait for operations the view started.
type trackedController struct {
	*session.Controller

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (c *trackedController) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *trackedController) Connect(ctx context.Context) error {
	if !c.begin() {
		return errViewClosed
	}
	defer c.wg.Done()
	return c.Controller.Connect(ctx)
}

func (c *trackedController) Disconnect(ctx context.Context) error {
	if !c.begin() {
		return errViewClosed
	}
	defer c.wg.Done()
	return c.Controller.Disconnect(ctx)
}

// closeSession cancels what the view still has running, waits for it, and
// closes any session left open.
func closeSession(ctx context.Context, cancel context.CancelFunc, ctrl *trackedController, log zerolog.Logger) {
	cancel()
	ctrl.mu.Lock()
	ctrl.closed = true
	ctrl.mu.Unlock()
	ctrl.wg.Wait()
	if err := ctrl.Controller.Disconnect(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("disconnect on exit")
	}
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, logFile, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	viewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := &trackedController{Controller: a.controller()}
	m := tui.New(viewCtx, ctrl)
	m.Nickname = cfg.Nickname

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := ctrl.Subscribe(func(st session.State) {
		p.Send(tui.StateMsg(st))
	})
	_, runErr := p.Run()
	unsubscribe()

	closeSession(ctx, cancel, ctrl, log)
	if runErr != nil {
		return fmt.Errorf("terminal view: %w", runErr)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
