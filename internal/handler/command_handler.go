package handler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/ecotrack-console/internal/dto"
	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/internal/service"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
	"github.com/noah-isme/ecotrack-console/pkg/export"
	"github.com/noah-isme/ecotrack-console/pkg/storage"
)

type sessionService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*models.User, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context)
	Current() models.Session
}

type dashboardService interface {
	Filters() *service.FilterStore
	SelectQuickPeriod(ctx context.Context, period models.QuickPeriod) error
	SetStartDate(ctx context.Context, raw string) error
	SetEndDate(ctx context.Context, raw string) error
	ApplyFilters(ctx context.Context, update service.FilterUpdate) error
	ResetFilters(ctx context.Context) error
	StatsRange() models.StatsRange
	SetStatsRange(start, end string) error
	ApplyStatsRange(ctx context.Context, start, end string) error
	IngestExternalData(ctx context.Context) (*models.IngestionResult, error)
}

type tabService interface {
	Activate(ctx context.Context, tab models.Tab) error
	ActivateAsync(tab models.Tab) error
	Active() models.Tab
	Refresh(ctx context.Context) error
}

type adminService interface {
	Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, id int, req dto.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id int, confirmer service.Confirmer) error
	OpenCreate() error
	OpenEdit(id int) error
	CloseForm() error
}

type exportService interface {
	Export(ctx context.Context, kind service.ExportKind, format export.Format) (*service.ExportResult, error)
}

type consoleRenderer interface {
	ShowMessage(msg models.Message)
	RenderStatus(session models.Session, tab models.Tab)
}

// UsageError reports a malformed command line. Service failures are already
// shown by the renderer and are returned as they are.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usagef(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// CommandDeps groups the services a CommandHandler drives.
type CommandDeps struct {
	Session   sessionService
	Dashboard dashboardService
	Tabs      tabService
	Admin     adminService
	Export    exportService
	Renderer  consoleRenderer
	Logger    *zap.Logger
	// ExportDir receives exports written without --out.
	ExportDir string
	// In is read for password and confirmation prompts.
	In  io.Reader
	Out io.Writer
}

// CommandHandler turns command lines into service calls.
type CommandHandler struct {
	deps CommandDeps

	promptMu sync.Mutex
	prompt   *bufio.Reader
	// interactive is false inside the shell, where stdin belongs to the input loop.
	interactive bool
}

// NewCommandHandler constructs a CommandHandler for one-shot use.
func NewCommandHandler(deps CommandDeps) *CommandHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	h := &CommandHandler{deps: deps, interactive: deps.In != nil}
	if deps.In != nil {
		h.prompt = bufio.NewReader(deps.In)
	}
	return h
}

// nonInteractive returns a copy that never prompts.
func (h *CommandHandler) nonInteractive() *CommandHandler {
	return &CommandHandler{deps: h.deps}
}

// Execute runs one command. args[0] is the command name.
func (h *CommandHandler) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("missing command")
	}
	name, rest := args[0], args[1:]
	h.deps.Logger.Debug("command", zap.String("name", name))

	switch name {
	case "login":
		return h.login(ctx, rest)
	case "register":
		return h.register(ctx, rest)
	case "logout":
		h.deps.Session.Logout(ctx)
		return nil
	case "whoami":
		h.deps.Renderer.RenderStatus(h.deps.Session.Current(), h.deps.Tabs.Active())
		return nil
	case "dashboard":
		return h.dashboard(ctx, rest)
	case "filter":
		return h.filter(ctx, rest)
	case "period":
		return h.period(ctx, rest)
	case "start", "end":
		return h.date(ctx, name, rest)
	case "reset":
		return h.deps.Dashboard.ResetFilters(ctx)
	case "stats":
		return h.stats(ctx, rest)
	case "range":
		if len(rest) != 2 {
			return usagef("usage: range <start> <end>, use \"\" for an open bound")
		}
		return h.deps.Dashboard.ApplyStatsRange(ctx, rest[0], rest[1])
	case "tab":
		return h.tab(ctx, rest)
	case "refresh":
		return h.deps.Tabs.Refresh(ctx)
	case "users":
		return h.users(ctx, rest)
	case "ingest":
		_, err := h.deps.Dashboard.IngestExternalData(ctx)
		return err
	case "export":
		return h.export(ctx, rest)
	case "help":
		fmt.Fprint(h.deps.Out, Usage)
		return nil
	default:
		return usagef("unknown command %q", name)
	}
}

func (h *CommandHandler) login(ctx context.Context, args []string) error {
	fs := h.flagSet("login")
	email := fs.StringP("email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "account password")
	if err := fs.Parse(args); err != nil {
		return usagef("login: %v", err)
	}
	if *email == "" && fs.NArg() > 0 {
		*email = fs.Arg(0)
	}
	if *password == "" {
		*password = h.ask("password: ")
	}
	if _, err := h.deps.Session.Login(ctx, dto.LoginRequest{Email: *email, Password: *password}); err != nil {
		return err
	}
	return h.deps.Tabs.Activate(ctx, models.TabDashboard)
}

func (h *CommandHandler) register(ctx context.Context, args []string) error {
	fs := h.flagSet("register")
	name := fs.StringP("name", "n", "", "full name")
	email := fs.StringP("email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "account password")
	if err := fs.Parse(args); err != nil {
		return usagef("register: %v", err)
	}
	if *password == "" {
		*password = h.ask("password: ")
	}
	_, err := h.deps.Session.Register(ctx, dto.RegisterRequest{FullName: *name, Email: *email, Password: *password})
	return err
}

type filterFlags struct {
	fs     *pflag.FlagSet
	kind   *string
	zone   *string
	limit  *int
	period *string
	start  *string
	end    *string
	reset  *bool
}

func bindFilterFlags(fs *pflag.FlagSet) *filterFlags {
	return &filterFlags{
		fs:     fs,
		kind:   fs.StringP("type", "t", "", "indicator type, empty for all"),
		zone:   fs.StringP("zone", "z", "", "zone id, empty for all"),
		limit:  fs.IntP("limit", "l", 0, "maximum number of indicators"),
		period: fs.String("period", "", "quick period: today, yesterday, week, month, year, last7days, last30days"),
		start:  fs.String("start", "", "start date YYYY-MM-DD, empty for unbounded"),
		end:    fs.String("end", "", "end date YYYY-MM-DD, empty for unbounded"),
		reset:  fs.Bool("reset", false, "restore default filters first"),
	}
}

// apply writes the changed flags into the filter store without loading.
// A period is applied before explicit dates so a date flag wins.
func (f *filterFlags) apply(store *service.FilterStore) error {
	if *f.reset {
		store.Reset()
	}
	var update service.FilterUpdate
	if f.fs.Changed("type") {
		update.Type = f.kind
	}
	if f.fs.Changed("zone") {
		update.ZoneID = f.zone
	}
	if f.fs.Changed("limit") {
		update.Limit = f.limit
	}
	if _, err := store.Apply(update); err != nil {
		return err
	}
	if f.fs.Changed("period") {
		period, err := models.ParseQuickPeriod(*f.period)
		if err != nil {
			return usagef("%v", err)
		}
		if period != models.PeriodNone {
			if _, err := store.SelectQuickPeriod(period); err != nil {
				return err
			}
		}
	}
	if f.fs.Changed("start") {
		if _, err := store.SetStartDate(*f.start); err != nil {
			return err
		}
	}
	if f.fs.Changed("end") {
		if _, err := store.SetEndDate(*f.end); err != nil {
			return err
		}
	}
	return nil
}

func (h *CommandHandler) dashboard(ctx context.Context, args []string) error {
	fs := h.flagSet("dashboard")
	filters := bindFilterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return usagef("dashboard: %v", err)
	}
	if err := filters.apply(h.deps.Dashboard.Filters()); err != nil {
		return h.fail(err)
	}
	return h.deps.Tabs.Activate(ctx, models.TabDashboard)
}

func (h *CommandHandler) filter(ctx context.Context, args []string) error {
	fs := h.flagSet("filter")
	kind := fs.StringP("type", "t", "", "indicator type, empty for all")
	zone := fs.StringP("zone", "z", "", "zone id, empty for all")
	limit := fs.IntP("limit", "l", 0, "maximum number of indicators")
	if err := fs.Parse(args); err != nil {
		return usagef("filter: %v", err)
	}
	var update service.FilterUpdate
	if fs.Changed("type") {
		update.Type = kind
	}
	if fs.Changed("zone") {
		update.ZoneID = zone
	}
	if fs.Changed("limit") {
		update.Limit = limit
	}
	return h.deps.Dashboard.ApplyFilters(ctx, update)
}

func (h *CommandHandler) period(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("usage: period <today|yesterday|week|month|year|last7days|last30days>")
	}
	period, err := models.ParseQuickPeriod(args[0])
	if err != nil || period == models.PeriodNone {
		return usagef("unknown quick period %q", args[0])
	}
	return h.deps.Dashboard.SelectQuickPeriod(ctx, period)
}

func (h *CommandHandler) date(ctx context.Context, which string, args []string) error {
	if len(args) > 1 {
		return usagef("usage: %s [YYYY-MM-DD]", which)
	}
	value := ""
	if len(args) == 1 {
		value = args[0]
	}
	if which == "start" {
		return h.deps.Dashboard.SetStartDate(ctx, value)
	}
	return h.deps.Dashboard.SetEndDate(ctx, value)
}

func (h *CommandHandler) stats(ctx context.Context, args []string) error {
	fs := h.flagSet("stats")
	start := fs.String("start", "", "start date YYYY-MM-DD")
	end := fs.String("end", "", "end date YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return usagef("stats: %v", err)
	}
	if fs.Changed("start") || fs.Changed("end") {
		current := h.deps.Dashboard.StatsRange()
		if !fs.Changed("start") {
			*start = current.StartDate
		}
		if !fs.Changed("end") {
			*end = current.EndDate
		}
		if err := h.deps.Dashboard.SetStatsRange(*start, *end); err != nil {
			return h.fail(err)
		}
	}
	return h.deps.Tabs.Activate(ctx, models.TabStats)
}

func (h *CommandHandler) tab(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("usage: tab <dashboard|stats|admin>")
	}
	tab, err := models.ParseTab(args[0])
	if err != nil {
		return usagef("%v", err)
	}
	return h.deps.Tabs.Activate(ctx, tab)
}

func (h *CommandHandler) users(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		return h.deps.Tabs.Activate(ctx, models.TabAdmin)
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "create":
		return h.createUser(ctx, rest)
	case "update":
		return h.updateUser(ctx, rest)
	case "delete":
		return h.deleteUser(ctx, rest)
	case "new":
		return h.deps.Admin.OpenCreate()
	case "edit":
		id, err := userID(rest)
		if err != nil {
			return err
		}
		return h.deps.Admin.OpenEdit(id)
	case "cancel":
		return h.deps.Admin.CloseForm()
	default:
		return usagef("unknown users command %q", sub)
	}
}

func (h *CommandHandler) createUser(ctx context.Context, args []string) error {
	fs := h.flagSet("users create")
	name := fs.StringP("name", "n", "", "full name")
	email := fs.StringP("email", "e", "", "account email")
	password := fs.StringP("password", "p", "", "initial password")
	role := fs.String("role", string(models.RoleUser), "user or admin")
	inactive := fs.Bool("inactive", false, "create the account disabled")
	if err := fs.Parse(args); err != nil {
		return usagef("users create: %v", err)
	}
	active := !*inactive
	_, err := h.deps.Admin.Create(ctx, dto.CreateUserRequest{
		FullName: *name,
		Email:    *email,
		Password: *password,
		Role:     models.Role(*role),
		IsActive: &active,
	})
	return err
}

func (h *CommandHandler) updateUser(ctx context.Context, args []string) error {
	fs := h.flagSet("users update")
	name := fs.StringP("name", "n", "", "full name")
	email := fs.StringP("email", "e", "", "account email")
	role := fs.String("role", "", "user or admin")
	active := fs.Bool("active", true, "account enabled")
	if err := fs.Parse(args); err != nil {
		return usagef("users update: %v", err)
	}
	id, err := userID(fs.Args())
	if err != nil {
		return err
	}

	var req dto.UpdateUserRequest
	if fs.Changed("name") {
		req.FullName = name
	}
	if fs.Changed("email") {
		req.Email = email
	}
	if fs.Changed("role") {
		r := models.Role(*role)
		req.Role = &r
	}
	if fs.Changed("active") {
		req.IsActive = active
	}
	_, err = h.deps.Admin.Update(ctx, id, req)
	return err
}

func (h *CommandHandler) deleteUser(ctx context.Context, args []string) error {
	fs := h.flagSet("users delete")
	yes := fs.BoolP("yes", "y", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return usagef("users delete: %v", err)
	}
	id, err := userID(fs.Args())
	if err != nil {
		return err
	}
	return h.deps.Admin.Delete(ctx, id, h.confirmer(*yes))
}

func (h *CommandHandler) export(ctx context.Context, args []string) error {
	fs := h.flagSet("export")
	format := fs.StringP("format", "f", string(export.FormatCSV), "csv or pdf")
	out := fs.StringP("out", "o", "", "output file or directory")
	filters := bindFilterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return usagef("export: %v", err)
	}
	if fs.NArg() != 1 {
		return usagef("usage: export <indicators|stats> [--format csv|pdf] [--out path]")
	}

	kind := service.ExportKind(fs.Arg(0))
	f, err := export.ParseFormat(*format)
	if err != nil {
		return usagef("%v", err)
	}
	if kind == service.ExportAirStats {
		if fs.Changed("start") || fs.Changed("end") {
			current := h.deps.Dashboard.StatsRange()
			start, end := current.StartDate, current.EndDate
			if fs.Changed("start") {
				start = *filters.start
			}
			if fs.Changed("end") {
				end = *filters.end
			}
			if err := h.deps.Dashboard.SetStatsRange(start, end); err != nil {
				return h.fail(err)
			}
		}
	} else if err := filters.apply(h.deps.Dashboard.Filters()); err != nil {
		return h.fail(err)
	}

	result, err := h.deps.Export.Export(ctx, kind, f)
	if err != nil {
		return h.fail(err)
	}

	dir, name := h.deps.ExportDir, result.Filename
	if *out != "" {
		if info, statErr := os.Stat(*out); statErr == nil && info.IsDir() {
			dir = *out
		} else {
			dir, name = filepath.Dir(*out), filepath.Base(*out)
		}
	}
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		return h.fail(err)
	}
	path, err := store.Save(name, result.Data)
	if err != nil {
		return h.fail(err)
	}
	h.deps.Renderer.ShowMessage(models.Message{Level: models.MessageSuccess, Text: fmt.Sprintf("exported %d rows to %s", result.Rows, path)})
	return nil
}

// fail shows errors the services did not render themselves.
func (h *CommandHandler) fail(err error) error {
	if err == nil {
		return nil
	}
	var usage *UsageError
	if !errors.As(err, &usage) && !appErrors.HasCode(err, appErrors.CodeAuthorizationExpired) {
		h.deps.Renderer.ShowMessage(models.Message{Level: models.MessageError, Text: appErrors.UserMessage(err, "command failed")})
	}
	return err
}

func (h *CommandHandler) confirmer(yes bool) service.Confirmer {
	return service.ConfirmFunc(func(prompt string) bool {
		if yes {
			return true
		}
		if !h.interactive {
			h.deps.Renderer.ShowMessage(models.Message{Level: models.MessageInfo, Text: prompt + " add --yes to confirm"})
			return false
		}
		answer := strings.ToLower(h.ask(prompt + " [y/N] "))
		return answer == "y" || answer == "yes"
	})
}

func (h *CommandHandler) ask(prompt string) string {
	if !h.interactive || h.prompt == nil {
		return ""
	}
	h.promptMu.Lock()
	defer h.promptMu.Unlock()
	fmt.Fprint(h.deps.Out, prompt)
	line, err := h.prompt.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

func (h *CommandHandler) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(h.deps.Out)
	return fs
}

func userID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, usagef("expected exactly one user id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, usagef("invalid user id %q", args[0])
	}
	return id, nil
}
