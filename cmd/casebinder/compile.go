package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/casebinder/internal/binder"
	"github.com/Lllllllleong/casebinder/internal/extract"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the case binder PDF",
	Long: `Compile lays out every document of the case (grouped by the sections file
when one is given), builds the cover and index, and stamps "Page X of N" on
every page of the result.

With --dry-run nothing is rendered; the index is projected from the page
counts recorded at ingestion.`,
	PreRun: bindFlags,
	RunE:   runCompile,
}

func init() {
	compileCmd.Flags().StringP("out", "o", "", "output PDF path (default: <case>-binder.pdf)")
	compileCmd.Flags().String("title", binder.DefaultTitle, "cover page title")
	compileCmd.Flags().Int("lines-per-page", binder.DefaultLinesPerIndexPage, "index lines per page")
	compileCmd.Flags().String("sections", "", "YAML file grouping documents into sections")
	compileCmd.Flags().Bool("save-sections", false, "store the sections file in the case")
	compileCmd.Flags().Bool("dry-run", false, "print the projected index without rendering")

	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	id, err := caseID()
	if err != nil {
		return err
	}
	logger := slog.Default().With("caseId", id)

	st, closeStore := openStore()
	defer closeStore()
	cs, err := loadCase(cmd, st, id, false)
	if err != nil {
		return err
	}

	if path := viper.GetString("sections"); path != "" {
		sections, err := loadSections(path, cs.Documents)
		if err != nil {
			return err
		}
		cs.Sections = sections
		if viper.GetBool("save-sections") {
			if err := st.Save(ctx, cs); err != nil {
				return fmt.Errorf("failed to save sections: %w", err)
			}
		}
	}

	linesPerPage := viper.GetInt("lines-per-page")
	if viper.GetBool("dry-run") {
		entries, indexPages, total := binder.Estimate(cs.Documents, cs.Sections, linesPerPage)
		printIndex(entries)
		fmt.Printf("\n%d index pages, about %d pages in total\n", indexPages, total)
		return nil
	}

	compiler := binder.New(fileSource{}, extract.NewPDFSanitizer(logger), binder.Options{
		Title:             viper.GetString("title"),
		LinesPerIndexPage: linesPerPage,
	}, logger)
	b, err := compiler.Compile(ctx, *cs)
	if err != nil {
		return err
	}

	out := viper.GetString("out")
	if out == "" {
		out = id + "-binder.pdf"
	}
	if err := os.WriteFile(out, b.PDF, 0o644); err != nil {
		return fmt.Errorf("failed to write binder: %w", err)
	}
	printIndex(b.Entries)
	fmt.Printf("\nWrote %s: %d pages, %d documents\n", out, b.TotalPages, b.Documents())
	return nil
}

func printIndex(entries []binder.IndexEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tPAGES\tDATE\tENTRY")
	for _, e := range entries {
		if e.Kind == binder.EntrySection {
			fmt.Fprintf(w, "%d\t%d\t\t[%s]\n", e.StartPage, e.Pages, e.Label)
			continue
		}
		label := e.Label
		if e.Failed {
			label += " (unavailable)"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", e.StartPage, e.Pages, e.Date.Format("2006-01-02"), label)
	}
	w.Flush()
}
