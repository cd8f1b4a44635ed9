package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-chunk/internal/ast"
)

type languageRow struct {
	Name       string   `json:"name"`
	Parser     string   `json:"parser"`
	Grammar    bool     `json:"grammar"`
	Aliases    []string `json:"aliases,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
}

func languagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dir, _ := cmd.Flags().GetString("profiles"); dir != "" {
				cfg.Index.ProfilesDir = dir
			}
			reg, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("failed to load profiles: %w", err)
			}

			parser := ast.NewParser()
			var rows []languageRow
			for _, name := range reg.Languages() {
				p, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				rows = append(rows, languageRow{
					Name:       p.Name(),
					Parser:     p.Parser(),
					Grammar:    parser.SupportsLanguage(p.Parser()),
					Aliases:    p.Aliases(),
					Extensions: p.Extensions(),
				})
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tPARSER\tGRAMMAR\tEXTENSIONS")
			for _, r := range rows {
				grammar := "yes"
				if !r.Grammar {
					grammar = "no"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Parser, grammar, strings.Join(r.Extensions, " "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Bool("json", false, "print as JSON")
	cmd.Flags().String("profiles", "", "directory of YAML language profiles")

	return cmd
}
