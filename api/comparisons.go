package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/glimpsy/dataset"
)

type createComparisonRequest struct {
	Name       string `json:"name"`
	Dataset1ID int64  `json:"dataset1_id"`
	Dataset2ID int64  `json:"dataset2_id"`
}

type comparisonView struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Dataset1  datasetView `json:"dataset1"`
	Dataset2  datasetView `json:"dataset2"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	comparisons, err := s.store.ListComparisons(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, comparisons)
}

func (s *Server) handleCreateComparison(w http.ResponseWriter, r *http.Request) {
	var req createComparisonRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.Dataset1ID == 0 || req.Dataset2ID == 0 {
		writeError(w, http.StatusBadRequest, "Both dataset IDs are required")
		return
	}
	if req.Dataset1ID == req.Dataset2ID {
		writeError(w, http.StatusBadRequest, "Please select two different datasets")
		return
	}

	c := &dataset.Comparison{
		Name:       req.Name,
		Dataset1ID: req.Dataset1ID,
		Dataset2ID: req.Dataset2ID,
	}
	id, err := s.store.CreateComparison(r.Context(), c)
	if err != nil {
		s.fail(w, r, err, "One or both datasets not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"name":        c.Name,
		"dataset1_id": c.Dataset1ID,
		"dataset2_id": c.Dataset2ID,
		"message":     "Portfolio comparison created successfully",
	})
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	c, err := s.store.Comparison(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Portfolio comparison not found")
		return
	}

	view := comparisonView{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}

	g, ctx := errgroup.WithContext(r.Context())
	load := func(datasetID int64, dst *datasetView) func() error {
		return func() error {
			d, rows, err := s.store.Get(ctx, datasetID)
			if err != nil {
				return err
			}
			*dst = newDatasetView(d, rows, false)
			return nil
		}
	}
	g.Go(load(c.Dataset1ID, &view.Dataset1))
	g.Go(load(c.Dataset2ID, &view.Dataset2))
	if err := g.Wait(); err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			writeError(w, http.StatusNotFound, "One or both datasets not found")
			return
		}
		s.fail(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, view)
}
