package handler

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/pkg/jobs"
)

type taskQueue interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(task jobs.Task) error
}

// ShellHandler reads commands line by line and dispatches them to a worker
// pool so a slow request never blocks the prompt.
type ShellHandler struct {
	commands *CommandHandler
	queue    taskQueue
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger
}

// NewShellHandler constructs a shell over the given command handler.
func NewShellHandler(commands *CommandHandler, queue taskQueue, in io.Reader, out io.Writer, logger *zap.Logger) *ShellHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShellHandler{commands: commands, queue: queue, in: in, out: out, logger: logger}
}

// Run loops until quit, end of input or ctx is done. Queued commands finish
// before Run returns.
func (s *ShellHandler) Run(ctx context.Context) error {
	runner := s.commands.nonInteractive()
	s.queue.Start(ctx)
	defer s.queue.Stop()

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintln(s.out, "type help for commands, quit to leave")
	if runner.deps.Session.Current().Authenticated() {
		if err := runner.deps.Tabs.ActivateAsync(models.TabDashboard); err != nil {
			s.logger.Warn("open dashboard", zap.Error(err))
		}
	}
	for {
		fmt.Fprint(s.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		args, err := SplitLine(line)
		if err != nil {
			fmt.Fprintf(s.out, "cannot parse line: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if done := s.dispatch(runner, args); done {
			return nil
		}
	}
}

// dispatch handles one parsed line and reports whether the shell should exit.
func (s *ShellHandler) dispatch(runner *CommandHandler, args []string) bool {
	switch args[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(s.out, Usage)
		return false
	case "shell", "watch":
		fmt.Fprintf(s.out, "%s is not available inside the shell\n", args[0])
		return false
	case "tab":
		if len(args) == 2 {
			tab, err := models.ParseTab(args[1])
			if err != nil {
				fmt.Fprintln(s.out, err)
				return false
			}
			if err := runner.deps.Tabs.ActivateAsync(tab); err != nil {
				s.logger.Warn("dispatch tab", zap.Error(err))
				fmt.Fprintln(s.out, err)
			}
			return false
		}
	}

	err := s.queue.Enqueue(jobs.Task{
		Name: args[0],
		Run: func(ctx context.Context) error {
			err := runner.Execute(ctx, args)
			var usage *UsageError
			if errors.As(err, &usage) {
				fmt.Fprintln(s.out, usage.Msg)
			}
			return err
		},
	})
	if err != nil {
		s.logger.Warn("dispatch command", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintln(s.out, err)
	}
	return false
}

// SplitLine tokenizes a shell line on spaces. Double quotes group words and
// "" is an empty argument.
func SplitLine(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = ' '
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r.Read()
}
