package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/casebinder/internal/binder"
	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/registry"
	"github.com/Lllllllleong/casebinder/internal/store"
	"github.com/Lllllllleong/casebinder/internal/timeline"
)

// GCSEvent is the data payload of a Cloud Storage object-finalized event.
type GCSEvent struct {
	Bucket      string    `json:"bucket"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        string    `json:"size"`
	TimeCreated time.Time `json:"timeCreated"`
}

// caseFromObject derives the case id and tag from an evidence object name
// laid out as <caseId>/<file> or <caseId>/<tag>/.../<file>.
func caseFromObject(name string) (caseID, tag string, ok bool) {
	if strings.HasSuffix(name, "/") {
		return "", "", false
	}
	parts := strings.Split(name, "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", "", false
	}
	if len(parts) > 2 {
		tag = parts[1]
	}
	return parts[0], tag, true
}

// collect runs the pipeline with a single goroutine draining its events into
// a slice, in emission order.
func collect(ctx context.Context, p *ingest.Pipeline, items []ingest.Item) []ingest.Event {
	out := make(chan ingest.Event, 16)
	var events []ingest.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range out {
			events = append(events, ev)
		}
	}()
	p.Run(ctx, items, out)
	close(out)
	<-done
	return events
}

// persistEvents reduces events into the stored case inside one store update,
// so concurrent invocations for the same case never lose each other's work.
func persistEvents(ctx context.Context, st store.CaseStore, caseID string, events []ingest.Event, opts timeline.Options, logger *slog.Logger) (models.Case, error) {
	var result models.Case
	err := st.Update(ctx, caseID, func(c *models.Case) error {
		reg := registry.FromCase(c, opts, logger)
		for _, ev := range events {
			reg.Apply(ev)
		}
		*c = reg.Snapshot(*c, time.Now().UTC())
		result = *c
		return nil
	})
	return result, err
}

// tally counts the terminal outcomes among events.
func tally(events []ingest.Event) (ready, failed, timelineEvents int) {
	for _, ev := range events {
		switch ev.Kind {
		case ingest.EventCompleted:
			ready++
			timelineEvents += len(ev.Timeline)
		case ingest.EventFailed:
			failed++
		}
	}
	return ready, failed, timelineEvents
}

func fileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// binderObjectName names the binder by a fingerprint of what it is compiled
// from: the case snapshot minus its update time, plus the compile options.
// Recompiling an unchanged case yields the same name, so the atomic write
// skips it.
func binderObjectName(cs models.Case, opts binder.Options) (string, error) {
	cs.UpdatedAt = time.Time{}
	payload, err := json.Marshal(struct {
		Case    models.Case    `json:"case"`
		Options binder.Options `json:"options"`
	}{cs, opts})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint case: %w", err)
	}
	return fmt.Sprintf("%s/binder-%s.pdf", cs.ID, fileHash(payload)[:16]), nil
}

func triggerWorkflow(ctx context.Context, client *executions.Client, projectID, location, workflowID string, payload map[string]interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return nil
}
