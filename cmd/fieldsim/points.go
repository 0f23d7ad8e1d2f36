package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listPoints prints the point table of a freshly built plant, optionally
// restricted to one owner such as "valve".
func listPoints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := newPlant(cfg, nil)
	if err != nil {
		return err
	}

	owner := ""
	if len(args) == 1 {
		owner = args[0]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tACCESS\tUNIT\tVALUE\tDESC")
	n := 0
	for _, pt := range p.Table().List() {
		if owner != "" && pt.Owner() != owner {
			continue
		}
		v, err := p.Read(pt.ID)
		if err != nil {
			return err
		}
		unit := pt.Unit
		if unit == "" {
			unit = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n", pt.ID, pt.Kind, pt.Access, unit, v, pt.Desc)
		n++
	}
	if n == 0 {
		return fmt.Errorf("no points owned by %q", owner)
	}
	return w.Flush()
}
