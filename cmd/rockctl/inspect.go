package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/di/providers"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// OwnerSummary counts the rocks of one owner.
type OwnerSummary struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Rocks  int     `json:"rocks"`
	Weight float64 `json:"total_weight"`
}

// TypeSummary counts the rocks of one type.
type TypeSummary struct {
	TypeID int64  `json:"type_id"`
	Label  string `json:"label"`
	Rocks  int    `json:"rocks"`
}

// Report is what inspect prints.
type Report struct {
	Driver string         `json:"driver"`
	Counts store.Stats    `json:"counts"`
	Owners []OwnerSummary `json:"owners"`
	Types  []TypeSummary  `json:"types"`
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show record counts and per-owner and per-type breakdowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector, err := opts.container(cmd, false)
			if err != nil {
				return err
			}
			defer shutdown(injector, cmd.ErrOrStderr())

			storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
			report, err := buildReport(cmd.Context(), storeHandle.Store)
			if err != nil {
				return err
			}
			report.Driver = storeHandle.Driver

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printReport(newPrinter(cmd.OutOrStdout()), report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func buildReport(ctx context.Context, st store.Store) (*Report, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	rocks, err := st.ListRocks(ctx, domain.RockFilter{})
	if err != nil {
		return nil, fmt.Errorf("list rocks: %w", err)
	}
	types, err := st.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}

	owners := map[string]*OwnerSummary{}
	typeCounts := map[int64]int{}
	for _, r := range rocks {
		o, ok := owners[r.UserID]
		if !ok {
			o = &OwnerSummary{UserID: r.UserID, Name: r.UserID}
			if r.Owner != nil {
				o.Name = r.Owner.Name()
			}
			owners[r.UserID] = o
		}
		o.Rocks++
		o.Weight += r.Weight
		typeCounts[r.TypeID]++
	}

	report := &Report{
		Counts: stats,
		Owners: make([]OwnerSummary, 0, len(owners)),
		Types:  make([]TypeSummary, 0, len(types)),
	}
	for _, o := range owners {
		report.Owners = append(report.Owners, *o)
	}
	slices.SortFunc(report.Owners, func(a, b OwnerSummary) int {
		return cmp.Or(cmp.Compare(b.Rocks, a.Rocks), cmp.Compare(a.Name, b.Name))
	})
	for _, t := range types {
		report.Types = append(report.Types, TypeSummary{TypeID: t.ID, Label: t.Label, Rocks: typeCounts[t.ID]})
	}

	return report, nil
}

func printReport(p *printer, r *Report) error {
	p.heading("database")
	tw := p.table()
	fmt.Fprintf(tw, "driver\t%s\n", r.Driver)
	fmt.Fprintf(tw, "users\t%d\n", r.Counts.Users)
	fmt.Fprintf(tw, "sessions\t%d\n", r.Counts.Sessions)
	fmt.Fprintf(tw, "types\t%d\n", r.Counts.Types)
	fmt.Fprintf(tw, "rocks\t%d\n", r.Counts.Rocks)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(p.w)
	p.heading("rocks by owner")
	if len(r.Owners) == 0 {
		fmt.Fprintln(p.w, "(none)")
	} else {
		tw = p.table()
		fmt.Fprintln(tw, "OWNER\tROCKS\tWEIGHT")
		for _, o := range r.Owners {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\n", o.Name, o.Rocks, o.Weight)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(p.w)
	p.heading("rocks by type")
	tw = p.table()
	fmt.Fprintln(tw, "TYPE\tROCKS")
	for _, t := range r.Types {
		fmt.Fprintf(tw, "%s\t%d\n", t.Label, t.Rocks)
	}
	return tw.Flush()
}
