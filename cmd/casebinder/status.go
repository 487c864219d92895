package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/casebinder/internal/models"
)

var statusCmd = &cobra.Command{
	Use:    "status",
	Short:  "Show the status of every document in the case",
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
			return enc.Encode(cs.Documents)
		}
		printDocuments(cs.Documents)
		counts := make(map[models.Status]int)
		for _, d := range cs.Documents {
			counts[d.Status]++
		}
		fmt.Printf("\n%d ready, %d failed, %d pending\n",
			counts[models.StatusReady], counts[models.StatusError],
			counts[models.StatusQueued]+counts[models.StatusProcessing])
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "output documents as JSON")

	rootCmd.AddCommand(statusCmd)
}
