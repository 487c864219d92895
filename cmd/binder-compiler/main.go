package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/casebinder/internal/models"
	"github.com/Lllllllleong/casebinder/internal/services"
	"github.com/Lllllllleong/casebinder/internal/store"
)

var (
	compilerInstance *services.CompilerFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleCompileBinder", handleCompileBinder)
}

func main() {}

// handleCompileBinder compiles and stores the binder for one case.
func handleCompileBinder(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		compilerInstance, initErr = services.NewCompiler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Compiler initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.CompileBinderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := compilerInstance.Process(r.Context(), &req)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Not Found: no such case", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "caseId", req.CaseID, "executionId", req.ExecutionID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
