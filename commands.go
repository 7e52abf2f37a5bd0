package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/schemaforge/drawio-schema-diff/pkg/diff"
	"github.com/schemaforge/drawio-schema-diff/pkg/drawio"
	"github.com/schemaforge/drawio-schema-diff/pkg/sqlparser"
)

var commands = []*cli.Command{diffCMD, genCMD, dumpCMD, edgesCMD}

var diffCMD = &cli.Command{
	Name:  "diff",
	Usage: "Compare migration SQL schemas with a draw.io diagram",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "migrations",
			Aliases:  []string{"m"},
			Usage:    "Path to the root of migration SQL files",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "drawio",
			Aliases:  []string{"d"},
			Usage:    "Path to the draw.io file to compare",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Write the diff report to a file instead of stdout",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		report, failures, err := diff.Compare(cmd.String("migrations"), cmd.String("drawio"))
		if err != nil {
			return err
		}
		printFailures(failures)

		if out := cmd.String("out"); out != "" {
			if err := os.WriteFile(out, []byte(report), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Printf("Report written to %s\n", out)
			return nil
		}
		fmt.Print(report)
		return nil
	},
}

var genCMD = &cli.Command{
	Name:  "gen",
	Usage: "Generate a draw.io ER diagram from migration SQL files",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "migrations",
			Aliases:  []string{"m"},
			Usage:    "Path to the root of migration SQL files",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "Path to the output .drawio file",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "show-types",
			Usage: "Append column types to labels",
		},
		&cli.IntFlag{
			Name:  "per-row",
			Usage: "Tables per row (0 = auto)",
		},
		&cli.StringFlag{
			Name:  "layout",
			Usage: "Path to a YAML layout config file",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		result, err := sqlparser.ReadFiles(cmd.String("migrations"))
		if err != nil {
			return err
		}
		printFailures(result.Failures)
		if len(result.Schema) == 0 {
			return fmt.Errorf("no tables detected, check the migration path or SQL dialect support")
		}

		layout := drawio.DefaultLayout()
		if path := cmd.String("layout"); path != "" {
			layout, err = drawio.LoadLayout(path)
			if err != nil {
				return err
			}
		}
		if perRow := int(cmd.Int("per-row")); perRow > 0 {
			layout.PerRow = perRow
		}

		doc, err := drawio.Generate(result.Schema, drawio.GenerateOptions{
			ShowTypes: cmd.Bool("show-types"),
			Layout:    layout,
		})
		if err != nil {
			return err
		}

		out := cmd.String("out")
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		if err := os.WriteFile(out, doc, 0o644); err != nil {
			return fmt.Errorf("write diagram: %w", err)
		}
		color.Green("Diagram written to %s", out)
		return nil
	},
}

var dumpCMD = &cli.Command{
	Name:  "dump",
	Usage: "Print the schema interpreted from migration SQL files",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "migrations",
			Aliases:  []string{"m"},
			Usage:    "Path to the root of migration SQL files",
			Required: true,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		result, err := sqlparser.ReadFiles(cmd.String("migrations"))
		if err != nil {
			return err
		}
		printFailures(result.Failures)

		names := make([]string, 0, len(result.Schema))
		for name := range result.Schema {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			table := result.Schema[name]
			fmt.Printf("table %s\n", table.Name)
			for _, col := range table.Columns {
				flags := ""
				if col.PrimaryKey {
					flags += " pk"
				}
				if !col.Nullable {
					flags += " not null"
				}
				fmt.Printf("  %s %s%s\n", col.Name, col.Type, flags)
			}
			for _, fk := range table.ForeignKeys {
				fmt.Printf("  fk (%s) -> %s (%s)\n",
					strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
			}
			for _, ix := range table.Indexes {
				kind := "index"
				if ix.Unique {
					kind = "unique index"
				}
				fmt.Printf("  %s %s (%s)", kind, ix.Name, strings.Join(ix.ColumnNames(), ", "))
				if ix.Where != "" {
					fmt.Printf(" where %s", ix.Where)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

var edgesCMD = &cli.Command{
	Name:  "edges",
	Usage: "Print the table/column connectors resolved from a draw.io diagram",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "drawio",
			Aliases:  []string{"d"},
			Usage:    "Path to the draw.io file",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Skip edges with unresolved endpoints",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		edges, err := drawio.ExtractEdges(cmd.String("drawio"))
		if err != nil {
			return err
		}
		strict := cmd.Bool("strict")
		for _, e := range edges {
			if strict && (e.SourceTable == "" || e.TargetTable == "") {
				continue
			}
			fmt.Printf("%s -> %s\n", endpoint(e.SourceTable, e.SourceColumn), endpoint(e.TargetTable, e.TargetColumn))
		}
		return nil
	},
}

func endpoint(table, column string) string {
	if table == "" {
		return "?"
	}
	if column == "" {
		return table
	}
	return table + "." + column
}

// printFailures surfaces statements the interpreter skipped. They are
// warnings: the report still reflects everything that did parse.
func printFailures(failures []sqlparser.Failure) {
	if len(failures) == 0 {
		return
	}
	warn := color.New(color.FgYellow)
	for _, f := range failures {
		_, _ = warn.Fprintf(os.Stderr, "warning: %s\n", f)
	}
}
