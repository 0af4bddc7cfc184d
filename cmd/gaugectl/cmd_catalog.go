package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/game"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build the configured catalog and list its contents",
	RunE:  runCatalog,
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := game.BuildCatalog(cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "States (%d):\n", cat.States.Len())
	for _, h := range cat.States.Handles() {
		s, _ := cat.States.Get(h)
		fmt.Fprintf(out, "  %2d %-12s classifier=%s\n", h, s.Name, s.Classifier)
	}

	fmt.Fprintf(out, "Elements (%d):\n", cat.Elements.Len())
	for _, h := range cat.Elements.Handles() {
		e, _ := cat.Elements.Get(h)
		fmt.Fprintf(out, "  %2d %-12s classifier=%s color=#%06x", h, e.Name, e.Classifier, e.Color)
		for _, sh := range cat.States.Handles() {
			gm, hm := e.GaugeMultiplier(sh), e.HealthMultiplier(sh)
			if gm != 1 || hm != 1 {
				s, _ := cat.States.Get(sh)
				fmt.Fprintf(out, " %s=%.2g/%.2g", s.Name, gm, hm)
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Reactions (%d):\n", cat.Reactions.Len())
	for _, h := range cat.Reactions.Handles() {
		r, _ := cat.Reactions.Get(h)
		fmt.Fprintf(out, "  %2d %-14s [%s] pct>=%.2f cooldown=%s lockout=%s priority=%d",
			h, r.Name, elementNames(cat, r.Elements), r.MinPctEach, r.Cooldown, r.ElementLockout, r.Priority)
		if r.ClearAllOnTrigger {
			fmt.Fprint(out, " clear-all")
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Pre-effects (%d):\n", cat.PreEffects.Len())
	for _, h := range cat.PreEffects.Handles() {
		p, _ := cat.PreEffects.Get(h)
		e, _ := cat.Elements.Get(p.Element)
		fmt.Fprintf(out, "  %2d %-14s element=%s min=%d intensity=%.2f+%.2f*g duration=%s cooldown=%s\n",
			h, p.Name, e.Name, p.MinGauge, p.Base, p.Scale, p.Duration, p.Cooldown)
	}
	return nil
}

func elementNames(cat *catalog.Catalog, hs []catalog.ElementHandle) string {
	names := make([]string, 0, len(hs))
	for _, h := range hs {
		e, _ := cat.Elements.Get(h)
		names = append(names, e.Name)
	}
	return strings.Join(names, "+")
}
