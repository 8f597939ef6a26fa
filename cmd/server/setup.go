package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/api"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/export"
	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/ingest"
)

// setupRouter wires the HTTP surface. Shared with the integration tests.
func setupRouter(handler *api.Handler, ingestHandler *ingest.Handler, exportHandler *export.Handler, hub *api.StreamHub) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware for dashboard access
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/data", handler.HandleGetData).Methods("GET")
	router.HandleFunc("/data/imputed", handler.HandleGetImputed).Methods("GET")
	router.HandleFunc("/data/run_imputation", handler.HandleRunImputation).Methods("POST")
	router.HandleFunc("/data/ingest", ingestHandler.HandleIngest).Methods("POST")
	router.HandleFunc("/data/export", exportHandler.HandleExport).Methods("GET")
	router.HandleFunc("/data/import", exportHandler.HandleImport).Methods("POST")
	if hub != nil {
		router.HandleFunc("/data/live", handler.HandleLive(hub)).Methods("GET")
	}
	router.HandleFunc("/health", handleHealth).Methods("GET")

	return router
}
