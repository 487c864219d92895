package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/casebinder/internal/extract"
	"github.com/Lllllllleong/casebinder/internal/gcp"
	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/registry"
	"github.com/Lllllllleong/casebinder/internal/timeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Ingest evidence files into a case",
	Long: `Ingest extracts and analyzes every given file with at most --concurrency
files in flight, then merges the extracted events into the case timeline.

Files already ingested into the case from the same path are skipped unless
--force is set. Files inside a sub-directory are tagged with its name.`,
	Args:   cobra.MinimumNArgs(1),
	PreRun: bindFlags,
	RunE:   runIngest,
}

func init() {
	ingestCmd.Flags().String("name", "", "case display name")
	ingestCmd.Flags().String("tag", "", "tag applied to every file (default: sub-directory name)")
	ingestCmd.Flags().Int("concurrency", ingest.DefaultConcurrency, "maximum files processed at once")
	ingestCmd.Flags().Int("max-file-mb", 50, "reject files larger than this")
	ingestCmd.Flags().Int("max-audio-mb", 20, "reject audio larger than this")
	ingestCmd.Flags().Int("dedup-prefix", timeline.DefaultPrefixLen, "description prefix length used to merge timeline events")
	ingestCmd.Flags().Bool("force", false, "re-ingest files already in the case")
	ingestCmd.Flags().String("project", "", "Google Cloud project for Vertex AI")
	ingestCmd.Flags().String("region", "us-central1", "Vertex AI region")
	ingestCmd.Flags().String("model", gcp.DefaultModel, "Gemini model name")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := caseID()
	if err != nil {
		return err
	}
	project := viper.GetString("project")
	if project == "" {
		return fmt.Errorf("a Vertex AI project is required (--project or CASEBINDER_PROJECT)")
	}
	logger := slog.Default().With("caseId", id)

	items, err := collectFiles(args, viper.GetString("tag"))
	if err != nil {
		return err
	}

	st, closeStore := openStore()
	defer closeStore()
	base, err := loadCase(cmd, st, id, true)
	if err != nil {
		return err
	}
	if name := viper.GetString("name"); name != "" {
		base.Name = name
	}

	reg := registry.FromCase(base, timeline.Options{PrefixLen: viper.GetInt("dedup-prefix")}, logger)
	pending := items
	if !viper.GetBool("force") {
		pending = skipIngested(reg, items)
	}
	if len(pending) == 0 {
		logger.Info("Nothing to ingest.", "files", len(items))
		return nil
	}

	vc, err := gcp.NewVertexClient(ctx, project, viper.GetString("region"), viper.GetString("model"))
	if err != nil {
		return fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	defer vc.Close()
	o := vc.Oracle(logger)

	extractor := extract.New(extract.Env{
		Oracle:        o,
		Sanitizer:     extract.NewPDFSanitizer(logger),
		MaxAudioBytes: int64(viper.GetInt("max-audio-mb")) << 20,
		Logger:        logger,
	})
	p := ingest.New(extractor, o, ingest.Config{
		Concurrency:  viper.GetInt("concurrency"),
		MaxFileBytes: int64(viper.GetInt("max-file-mb")) << 20,
	}, logger)

	reg.Ingest(ctx, p, pending)

	snapshot := reg.Snapshot(*base, time.Now().UTC())
	if err := st.Save(ctx, &snapshot); err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}

	uris := make(map[string]bool, len(pending))
	for _, it := range pending {
		uris[it.SourceURI] = true
	}
	var processed []models.Document
	for _, d := range snapshot.Documents {
		if uris[d.SourceURI] {
			processed = append(processed, d)
		}
	}
	printDocuments(processed)
	fmt.Printf("\n%d timeline events in case %s\n", len(snapshot.Timeline), id)
	return nil
}

// skipIngested drops files that already reached a terminal status in the case.
func skipIngested(reg *registry.Registry, items []ingest.Item) []ingest.Item {
	done := make(map[string]bool)
	for _, d := range reg.Documents() {
		if d.Status.Terminal() {
			done[d.SourceURI] = true
		}
	}
	var out []ingest.Item
	for _, it := range items {
		if done[it.SourceURI] {
			slog.Debug("Already ingested. Skipping.", "file", it.Filename)
			continue
		}
		out = append(out, it)
	}
	return out
}

func printDocuments(docs []models.Document) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tSTATUS\tEVENTS\tDETAIL")
	for _, d := range docs {
		detail := d.Summary
		if d.Status == models.StatusError {
			detail = fmt.Sprintf("%s: %s", d.FailureKind, d.ErrorDetails)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.Filename, d.ContentType, d.Status, d.Stats.Events, truncate(detail, 80))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
