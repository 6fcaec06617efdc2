// Package api exposes the lead engine over HTTP: job submission and
// polling, file import, duplicate scanning, and merges.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/api/response"
	"github.com/sells-group/lead-engine/internal/dedupe"
	"github.com/sells-group/lead-engine/internal/importer"
	"github.com/sells-group/lead-engine/internal/ingest"
	"github.com/sells-group/lead-engine/internal/jobs"
	"github.com/sells-group/lead-engine/internal/store"
)

// maxImportBytes caps uploaded import files at 50 MB.
const maxImportBytes = 50 << 20

// Server wires the engine's components into HTTP handlers.
type Server struct {
	Store        store.Store
	Orchestrator *jobs.Orchestrator
	Detector     *dedupe.Detector
	Importer     *importer.Importer

	// DefaultThreshold is used when a duplicate scan omits ?threshold=.
	DefaultThreshold float64
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, map[string]string{"status": "ok"})
}

type submitJobRequest struct {
	LeadIDs   []string `json:"lead_ids"`
	BatchSize int      `json:"batch_size"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if len(req.LeadIDs) == 0 {
		response.Error(w, http.StatusBadRequest, "EMPTY_LEAD_LIST", "lead_ids is required and must be non-empty")
		return
	}

	jobID, err := s.Orchestrator.Submit(r.Context(), req.LeadIDs, req.BatchSize)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "SUBMIT_FAILED", err.Error())
		return
	}

	response.Accepted(w, map[string]string{"job_id": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.Store.GetJob(r.Context(), jobID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
		return
	}

	logs, err := s.Store.RecentJobLogs(r.Context(), jobID, 20)
	if err != nil {
		zap.L().Warn("load recent job logs", zap.String("job_id", jobID), zap.Error(err))
	}

	response.JSON(w, map[string]any{
		"job":                 job,
		"percent_complete":    job.PercentComplete(),
		"estimated_remaining": jobs.EstimateRemaining(job),
		"recent_logs":         logs,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.Orchestrator.Cancel(jobID); err != nil {
		response.Error(w, http.StatusConflict, "NOT_RUNNING", err.Error())
		return
	}

	response.JSON(w, map[string]string{"job_id": jobID, "status": "cancelling"})
}

// handleImport accepts a CSV or XLSX file, either as a multipart "file"
// field or as the raw request body (CSV only in that case).
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	opts := importer.Options{
		SkipDuplicates: r.URL.Query().Get("skip_duplicates") == "true",
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		opts.Tags = strings.Split(tags, ",")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var table *ingest.Table
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "MISSING_FILE", "multipart field \"file\" is required")
			return
		}
		defer file.Close()

		if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			data, err := io.ReadAll(file)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "READ_FAILED", err.Error())
				return
			}
			table, err = ingest.StreamXLSXBytes(r.Context(), data, ingest.XLSXOptions{})
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_XLSX", err.Error())
				return
			}
		} else {
			table, err = ingest.StreamCSV(r.Context(), file, ingest.CSVOptions{})
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_CSV", err.Error())
				return
			}
		}
	} else {
		var err error
		table, err = ingest.StreamCSV(r.Context(), r.Body, ingest.CSVOptions{})
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_CSV", err.Error())
			return
		}
	}

	result, err := s.Importer.Run(r.Context(), table.Header, table.Rows, table.Err, opts)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "IMPORT_FAILED", err.Error())
		return
	}

	response.Created(w, result)
}

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	threshold := s.DefaultThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_THRESHOLD", "threshold must be a number")
			return
		}
		threshold = parsed
	}

	clusters, err := s.Detector.FindDuplicates(r.Context(), threshold)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "SCAN_FAILED", err.Error())
		return
	}

	response.JSON(w, map[string]any{
		"threshold": threshold,
		"clusters":  clusters,
	})
}

type mergeRequest struct {
	LeadIDs   []string `json:"lead_ids"`
	PrimaryID string   `json:"primary_id"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	merged, err := dedupe.ApplyMerge(r.Context(), s.Store, req.LeadIDs, req.PrimaryID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "MERGE_FAILED", err.Error())
		return
	}

	response.JSON(w, merged)
}
