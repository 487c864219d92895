package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/casebinder/internal/models"
)

var timelineCmd = &cobra.Command{
	Use:    "timeline",
	Short:  "Print the merged case timeline",
	PreRun: bindFlags,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := caseID()
		if err != nil {
			return err
		}
		st, closeStore := openStore()
		defer closeStore()
		cs, err := loadCase(cmd, st, id, false)
		if err != nil {
			return err
		}

		if viper.GetBool("json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cs.Timeline)
		}
		printTimeline(cs)
		return nil
	},
}

func init() {
	timelineCmd.Flags().Bool("json", false, "output the timeline as JSON")

	rootCmd.AddCommand(timelineCmd)
}

func printTimeline(cs *models.Case) {
	names := make(map[string]string, len(cs.Documents))
	for _, d := range cs.Documents {
		names[d.ID] = d.Filename
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSEVERITY\tEVENT\tSOURCES")
	for _, e := range cs.Timeline {
		sources := make([]string, 0, len(e.Sources))
		for _, id := range e.Sources {
			if name, ok := names[id]; ok {
				id = name
			}
			sources = append(sources, id)
		}
		date := e.Date
		if date == "" {
			date = "undated"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", date, e.Severity, e.Description, strings.Join(sources, ", "))
	}
	w.Flush()
}
