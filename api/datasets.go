package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugr-lab/glimpsy/blob"
	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/filter"
	"github.com/hugr-lab/glimpsy/tabular"
)

// maxFilterBody caps filter request bodies.
const maxFilterBody = 1 << 20

// datasetView is the detail representation of a dataset.
type datasetView struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Columns     []string         `json:"columns"`
	Data        []dataset.Row    `json:"data"`
	RowCount    int              `json:"row_count"`
	FileType    dataset.FileType `json:"file_type"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
}

func newDatasetView(d *dataset.Dataset, rows []dataset.Row, withCreated bool) datasetView {
	v := datasetView{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Columns:     d.Columns,
		Data:        rows,
		RowCount:    d.RowCount,
		FileType:    d.FileType,
	}
	if v.Columns == nil {
		v.Columns = []string{}
	}
	if v.Data == nil {
		v.Data = []dataset.Row{}
	}
	if withCreated {
		created := d.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Glimpsy API Server",
		"version": Version,
		"endpoints": map[string]string{
			"health":                "/api/health",
			"datasets":              "/api/datasets",
			"portfolio_comparisons": "/api/portfolio-comparisons",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"message":   "Glimpsy backend is running",
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	d, rows, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, newDatasetView(d, rows, true))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, limit is %d bytes", tooLarge.Limit))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "No file provided")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	fileType, err := tabular.FileTypeFromName(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "File type not allowed. Only CSV and Parquet files are supported.")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	filename := blob.SecureFilename(header.Filename)
	objectName := blob.ObjectName(header.Filename)

	if err := s.blobs.Put(ctx, objectName, file, header.Size); err != nil {
		s.fail(w, r, fmt.Errorf("error saving file: %w", err), "")
		return
	}

	table, err := s.decodeBlob(ctx, objectName, fileType)
	if err != nil {
		s.removeBlob(ctx, objectName)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err))
		return
	}

	d := &dataset.Dataset{
		Name:        name,
		Description: r.FormValue("description"),
		Filename:    filename,
		FilePath:    objectName,
		FileType:    fileType,
		Columns:     table.Columns,
	}
	id, err := s.store.Create(ctx, d, table.Rows)
	if err != nil {
		s.removeBlob(ctx, objectName)
		s.fail(w, r, fmt.Errorf("error processing file: %w", err), "")
		return
	}

	s.logger.Info("dataset uploaded", "id", id, "name", name, "rows", len(table.Rows), "file", objectName)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        id,
		"name":      name,
		"message":   "Dataset uploaded successfully",
		"row_count": len(table.Rows),
		"columns":   table.Columns,
	})
}

func (s *Server) decodeBlob(ctx context.Context, name string, ft dataset.FileType) (*tabular.Table, error) {
	rc, err := s.blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return tabular.Decode(ctx, ft, rc, s.tabular)
}

// removeBlob deletes an upload file, logging failures.
func (s *Server) removeBlob(ctx context.Context, name string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), name); err != nil {
		s.logger.Error("failed to remove upload file", "file", name, "error", err)
	}
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := pathID(r)

	d, err := s.store.Dataset(ctx, id)
	if err != nil {
		s.fail(w, r, err, "Dataset not found")
		return
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.fail(w, r, err, "Dataset not found")
		return
	}
	if d.FilePath != "" {
		s.removeBlob(ctx, d.FilePath)
	}

	s.logger.Info("dataset deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Dataset deleted successfully"})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	d, rows, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Dataset not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFilterBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	spec, err := filter.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filtered := filter.Apply(rows, spec, d.Columns)
	if filtered == nil {
		filtered = []dataset.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":           filtered,
		"row_count":      len(filtered),
		"original_count": len(rows),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	d, rows, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Dataset not found")
		return
	}

	spec, err := filter.Parse([]byte(r.URL.Query().Get("filters")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// render fully before writing so that failures still get a JSON error
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, d.Columns, filter.Apply(rows, spec, d.Columns), s.tabular); err != nil {
		s.fail(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": d.Name + "_export.csv",
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
