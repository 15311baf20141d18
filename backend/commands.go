package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/config"
	"github.com/soar/DriveAssist/backend/internal/profile"
)

// commandFunc runs a subcommand with its positional arguments.
type commandFunc func(cfg *config.Config, args []string, out io.Writer, logger *zap.SugaredLogger) error

var commands = map[string]commandFunc{
	"run":      runCommand,
	"profiles": profilesCommand,
	"schema":   schemaCommand,
	"import":   importCommand,
	"export":   exportCommand,
	"monitor":  monitorCommand,
}

func profilesCommand(cfg *config.Config, _ []string, out io.Writer, logger *zap.SugaredLogger) error {
	store, err := profile.NewStore(cfg.ProfilesDir, logger.Named("profiles"))
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Name", "Mode", "Deadzone", "Steer", "Throttle", "Brake", "Curve", "Vehicle", "Status"})
	if !lo.Contains(names, profile.DefaultName) {
		t.AppendRow(profileRow(profile.Default(), "built-in"))
	}
	for _, name := range names {
		p, err := store.Load(name)
		if err != nil {
			t.AppendRow(table.Row{name, "", "", "", "", "", "", "", errors.Cause(err).Error()})
			continue
		}
		t.AppendRow(profileRow(p, "ok"))
	}
	t.Render()
	return nil
}

func profileRow(p profile.Profile, status string) table.Row {
	e := p.Effective()
	mode := string(p.SteeringMode)
	if mode == "" {
		mode = string(profile.ModeCustom)
	}
	vehicle := p.Vehicle
	if vehicle == "" {
		vehicle = "-"
	}
	return table.Row{
		p.Name, mode, p.Deadzone, p.SteerSpeed, p.ThrottleSpeed, p.BrakeSpeed,
		fmt.Sprintf("%.2f", e.CurveStrength), vehicle, status,
	}
}

func schemaCommand(_ *config.Config, _ []string, out io.Writer, _ *zap.SugaredLogger) error {
	data, err := profile.Schema()
	if err != nil {
		return errors.Wrap(err, "generating schema")
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func importCommand(cfg *config.Config, args []string, out io.Writer, logger *zap.SugaredLogger) error {
	if len(args) != 1 {
		return errors.New("usage: driveassist import <file>")
	}
	store, err := profile.NewStore(cfg.ProfilesDir, logger.Named("profiles"))
	if err != nil {
		return err
	}
	p, err := store.Import(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported profile %q\n", p.Name)
	return err
}

func exportCommand(cfg *config.Config, args []string, out io.Writer, logger *zap.SugaredLogger) error {
	if len(args) != 2 {
		return errors.New("usage: driveassist export <name> <file>")
	}
	store, err := profile.NewStore(cfg.ProfilesDir, logger.Named("profiles"))
	if err != nil {
		return err
	}
	if err := store.Export(args[0], args[1]); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "exported profile %q to %s\n", args[0], args[1])
	return err
}
