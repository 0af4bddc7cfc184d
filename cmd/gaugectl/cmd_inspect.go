package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/game"
	"github.com/pthm-cable/elemental/gauge"
	"github.com/pthm-cable/elemental/savegame"
)

var inspectFlags struct {
	entities bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <save>",
	Short: "List the records of a save file and decode its gauges",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.entities, "entities", true, "Print one line per gauged entity")
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := savegame.ReadRecords(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	// Element names are only used for labels; a save from another catalog
	// still decodes.
	var cat *catalog.Catalog
	if cfg, err := loadConfig(); err == nil {
		cat, _ = game.BuildCatalog(cfg, nil, nil)
	}

	out := cmd.OutOrStdout()
	for _, rec := range records {
		fmt.Fprintf(out, "%s v%d %d bytes\n", rec.Name, rec.Version, len(rec.Payload))
		if rec.Name != gauge.RecordName {
			continue
		}
		states, err := gauge.ReadEntities(bytes.NewReader(rec.Payload), rec.Version)
		if err != nil {
			return fmt.Errorf("decode %s: %w", rec.Name, err)
		}
		fmt.Fprintf(out, "  %d gauged entities\n", len(states))
		if inspectFlags.entities {
			for _, st := range states {
				printEntity(out, cat, st)
			}
		}
	}
	return nil
}

func printEntity(out io.Writer, cat *catalog.Catalog, st gauge.EntityState) {
	fmt.Fprintf(out, "  entity %d:", st.Entity)
	sum := 0
	for i, v := range st.Values {
		if v == 0 {
			continue
		}
		sum += int(v)
		fmt.Fprintf(out, " %s=%d", elementLabel(cat, catalog.ElementHandle(i)), v)
		if i < len(st.InReaction) && st.InReaction[i] {
			fmt.Fprint(out, "*")
		}
	}
	fmt.Fprintf(out, " sum=%d", sum)
	active := 0
	for _, on := range st.PreActive {
		if on {
			active++
		}
	}
	if active > 0 {
		fmt.Fprintf(out, " pre-effects=%d", active)
	}
	if len(st.States) > 0 {
		fmt.Fprintf(out, " states=%v", st.States)
	}
	fmt.Fprintln(out)
}

func elementLabel(cat *catalog.Catalog, h catalog.ElementHandle) string {
	if cat != nil {
		if e, ok := cat.Elements.Get(h); ok {
			return e.Name
		}
	}
	return fmt.Sprintf("#%d", h)
}
