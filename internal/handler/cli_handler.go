package handler

import (
	"context"

	"github.com/noah-isme/ecotrack-console/internal/models"
)

// Usage is printed by help and on malformed command lines.
const Usage = `usage: ecotrack <command> [flags]

session
  login [email] [-e email] [-p password]
  register -n name -e email [-p password]
  logout
  whoami

dashboard
  dashboard [--type t] [--zone id] [--limit n] [--period p] [--start d] [--end d] [--reset]
  filter [--type t] [--zone id] [--limit n]
  period <today|yesterday|week|month|year|last7days|last30days>
  start [YYYY-MM-DD]      empty clears the bound
  end [YYYY-MM-DD]
  reset
  ingest
  stats [--start d] [--end d]
  range <start> <end>     set the stats range and reload it
  tab <dashboard|stats|admin>
  refresh

administration
  users [list]
  users create -n name -e email -p password [--role user|admin] [--inactive]
  users update <id> [-n name] [-e email] [--role r] [--active=false]
  users delete <id> [--yes]
  users new | edit <id> | cancel

export
  export <indicators|stats> [--format csv|pdf] [--out path] [filter flags]

modes
  shell                   interactive prompt
  watch [--tab t] [--addr host:port]
  help
`

// CLI routes a process invocation to the one-shot, shell or watch mode.
type CLI struct {
	Commands *CommandHandler
	Shell    *ShellHandler
	Watch    *WatchHandler
	// MetricsAddr is the default status server address for watch.
	MetricsAddr string
}

// Run executes args. No arguments opens the shell.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.Shell.Run(ctx)
	}
	switch args[0] {
	case "shell":
		return c.Shell.Run(ctx)
	case "watch":
		return c.watch(ctx, args[1:])
	default:
		return c.Commands.Execute(ctx, args)
	}
}

func (c *CLI) watch(ctx context.Context, args []string) error {
	fs := c.Commands.flagSet("watch")
	tabName := fs.String("tab", string(models.TabDashboard), "tab to keep refreshed")
	addr := fs.String("addr", c.MetricsAddr, "status server address, empty to disable")
	if err := fs.Parse(args); err != nil {
		return usagef("watch: %v", err)
	}
	tab, err := models.ParseTab(*tabName)
	if err != nil {
		return usagef("%v", err)
	}
	return c.Watch.Run(ctx, tab, *addr)
}
