package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"expenses/internal/cli"
	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/store"
	"expenses/internal/view"
	"expenses/internal/worker"
)

// errUsage is returned after usage has been printed.
var errUsage = errors.New("invalid usage")

type app struct {
	gateway  store.Gateway
	msgs     *i18n.Messages
	currency string
	logger   *applog.Logger
	// exporter opens the Google Sheets export on demand.
	exporter func(ctx context.Context) (worker.Exporter, error)

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"list", "list expenses, optionally within -from/-to", (*app).list},
	{"summary", "totals per category, optionally within -from/-to", (*app).summary},
	{"categories", "list categories", (*app).categories},
	{"add", "add an expense", (*app).add},
	{"edit", "edit an expense by -id", (*app).edit},
	{"delete", "delete an expense by -id", (*app).delete},
	{"export", "write the filtered expenses as CSV", (*app).export},
	{"sheets-export", "overwrite the Google Sheet, optionally within -from/-to", (*app).sheetsExport},
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, "Usage: expensectl <command> [flags]")
	fmt.Fprintln(a.stderr)
	tw := tabwriter.NewWriter(a.stderr, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	tw.Flush()
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errUsage
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(a, ctx, args[1:])
		}
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return nil
	}
	fmt.Fprintf(a.stderr, "unknown command %q\n\n", args[0])
	a.usage()
	return errUsage
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// controller returns a loaded controller. Load failures are fatal for the
// command because every command works on the loaded list.
func (a *app) controller(ctx context.Context) (*view.Controller, error) {
	c := view.New(a.gateway,
		view.WithMessages(a.msgs),
		view.WithLogger(a.logger.Base()))
	if err := c.Load(ctx); err != nil {
		if msg := c.Snapshot().Error; msg != "" {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		return nil, err
	}
	return c, nil
}

// filtered parses -from/-to into fs and returns a loaded controller with
// the range applied.
func (a *app) filtered(ctx context.Context, fs *flag.FlagSet, args []string) (*view.Controller, error) {
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rng, err := core.ParseDateRange(*from, *to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.msgs.InvalidFilter, err)
	}
	c, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	c.SetFilter(rng)
	return c, nil
}

func (a *app) money(m core.Money) string {
	return m.String() + " " + a.currency
}

func (a *app) list(ctx context.Context, args []string) error {
	c, err := a.filtered(ctx, a.flags("list"), args)
	if err != nil {
		return err
	}
	snap := c.Snapshot()
	if len(snap.Filtered) == 0 {
		fmt.Fprintln(a.stdout, a.msgs.EmptyState)
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\t%s\t%s\t%s\n", a.msgs.Date, a.msgs.Description, a.msgs.Category, a.msgs.Amount)
	for _, e := range snap.Filtered {
		cat := e.CategoryName()
		if cat == "" {
			cat = a.msgs.NoCategory
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Description, cat, a.money(e.Amount))
	}
	fmt.Fprintf(tw, "\t\t\t%s\t%s\n", a.msgs.Total, a.money(snap.Total))
	return tw.Flush()
}

func (a *app) summary(ctx context.Context, args []string) error {
	c, err := a.filtered(ctx, a.flags("summary"), args)
	if err != nil {
		return err
	}
	snap := c.Snapshot()
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, s := range snap.Summary {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", a.msgs.CategoryLabel(s.Category), s.Count, a.money(s.Amount))
	}
	fmt.Fprintf(tw, "%s\t%d\t%s\n", a.msgs.Total, len(snap.Filtered), a.money(snap.Total))
	return tw.Flush()
}

func (a *app) categories(ctx context.Context, args []string) error {
	if err := a.flags("categories").Parse(args); err != nil {
		return err
	}
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, cat := range c.Snapshot().Categories {
		fmt.Fprintf(tw, "%d\t%s\n", cat.ID, cat.Name)
	}
	return tw.Flush()
}

// formFlags registers the add/edit fields, each with a one-letter alias.
// Category accepts an id or a name.
type formFlags struct {
	description, amount, date, category string
}

func newFormFlags(fs *flag.FlagSet) *formFlags {
	ff := &formFlags{}
	for _, name := range []string{"description", "d"} {
		fs.StringVar(&ff.description, name, "", "what the money was spent on")
	}
	for _, name := range []string{"amount", "a"} {
		fs.StringVar(&ff.amount, name, "", "amount, e.g. 12.50")
	}
	fs.StringVar(&ff.date, "date", "", "date, YYYY-MM-DD")
	for _, name := range []string{"category", "c"} {
		fs.StringVar(&ff.category, name, "", "category id or name; \"none\" clears it")
	}
	return ff
}

// apply overwrites the fields of f that were set on the command line.
func (ff *formFlags) apply(fs *flag.FlagSet, f view.Form, cats []core.Category) (view.Form, error) {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "description", "d":
			f.Description = ff.description
		case "amount", "a":
			f.Amount = ff.amount
		case "date":
			f.Date = ff.date
		case "category", "c":
			f.CategoryID, err = resolveCategory(ff.category, cats)
		}
	})
	return f, err
}

func resolveCategory(v string, cats []core.Category) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "none") {
		return "", nil
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return v, nil
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, v) {
			return strconv.FormatInt(c.ID, 10), nil
		}
	}
	return "", fmt.Errorf("unknown category %q", v)
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	ff := newFormFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	snap := c.Snapshot()
	form, err := ff.apply(fs, snap.Form, snap.Categories)
	if err != nil {
		return err
	}
	saved, err := c.Save(ctx, form)
	if err != nil {
		return a.saveError(c, err)
	}
	fmt.Fprintf(a.stdout, "%d\t%s\t%s\n", saved.ID, saved.Description, a.money(saved.Amount))
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := a.flags("edit")
	id := fs.Int64("id", 0, "expense id")
	ff := newFormFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		fs.Usage()
		return errUsage
	}
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	if err := c.StartEditID(*id); err != nil {
		return fmt.Errorf("expense %d: %w", *id, err)
	}
	snap := c.Snapshot()
	form, err := ff.apply(fs, snap.Form, snap.Categories)
	if err != nil {
		return err
	}
	saved, err := c.Save(ctx, form)
	if err != nil {
		return a.saveError(c, err)
	}
	fmt.Fprintf(a.stdout, "%d\t%s\t%s\n", saved.ID, saved.Description, a.money(saved.Amount))
	return nil
}

// saveError prints localized field errors, or the banner message for
// backend failures.
func (a *app) saveError(c *view.Controller, err error) error {
	snap := c.Snapshot()
	if len(snap.FieldErrors) > 0 {
		fields := make([]string, 0, len(snap.FieldErrors))
		for f := range snap.FieldErrors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(a.stderr, "%s: %s\n", f, snap.FieldErrors[f])
		}
		return err
	}
	if snap.Error != "" {
		return fmt.Errorf("%s: %w", snap.Error, err)
	}
	return err
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := a.flags("delete")
	id := fs.Int64("id", 0, "expense id")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		fs.Usage()
		return errUsage
	}
	var confirm view.Confirmer = cli.NewPromptConfirmer(a.stdin, a.stdout, a.msgs, *yes)
	if f, ok := a.stdin.(*os.File); ok && !*yes && !cli.Interactive(f) {
		// Nobody to ask.
		confirm = view.Answer(false)
	}
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	deleted, err := c.Delete(ctx, *id, confirm)
	if err != nil {
		return a.saveError(c, err)
	}
	if !deleted {
		fmt.Fprintln(a.stdout, "cancelled")
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	out := fs.String("o", "", "output file, default stdout")
	c, err := a.filtered(ctx, fs, args)
	if err != nil {
		return err
	}
	var w io.Writer = a.stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := c.ExportCSV(w); err != nil {
		if errors.Is(err, view.ErrNothingToExport) {
			fmt.Fprintln(a.stderr, a.msgs.NothingToExport)
			return nil
		}
		return fmt.Errorf("%s: %w", a.msgs.ExportFailed, err)
	}
	return nil
}

func (a *app) sheetsExport(ctx context.Context, args []string) error {
	if a.exporter == nil {
		return errors.New("google sheets export is not configured")
	}
	c, err := a.filtered(ctx, a.flags("sheets-export"), args)
	if err != nil {
		return err
	}
	exp, err := a.exporter(ctx)
	if err != nil {
		return err
	}
	rows := c.Filtered()
	if err := exp.Export(ctx, rows); err != nil {
		return fmt.Errorf("%s: %w", a.msgs.ExportFailed, err)
	}
	fmt.Fprintf(a.stdout, "exported %d expenses\n", len(rows))
	return nil
}
