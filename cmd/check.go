package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fuzzyscore/scoring"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compile the configured engine and print its variables and rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		svc, err := scoring.New(cfg, nil, nil, nil, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		w := cmd.OutOrStdout()
		e := svc.Engine()
		opts := e.Options()
		fmt.Fprintf(w, "engine OK (%s)\n", path)
		fmt.Fprintf(w, "operators: implication=%s defuzzifier=%s fallback=%s inputs=%s\n",
			opts.Implication, opts.Defuzzifier, opts.Fallback, opts.InputPolicy)
		fmt.Fprintf(w, "output: %s, labels: %s\n", svc.Output(), svc.Labels().Tag)
		fmt.Fprintf(w, "columns: %s\n", strings.Join(svc.Columns(), ", "))

		for _, v := range append(e.Inputs(), e.Outputs()...) {
			u := v.Universe()
			fmt.Fprintf(w, "%-12s %-22s [%g, %g] step %g\n", v.Role(), v.Name(), u.Min(), u.Max(), u.Step())
			for _, name := range v.Terms() {
				mf, _ := v.Term(name)
				fmt.Fprintf(w, "    %-14s %v\n", name, mf)
			}
		}
		fmt.Fprintln(w, strings.Repeat("─", 60))
		for i, r := range e.Rules() {
			fmt.Fprintf(w, "%2d. %s\n", i+1, r)
		}
		return nil
	},
}
