package integration

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indago/internal/models"
)

// TestArchiveAnalysisFlow walks the primary user journey: upload an export
// archive, read every cross-reference table, download each export format,
// and delete the run.
func TestArchiveAnalysisFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	// Upload the archive
	run := postArchive(t, ts, "bw_export.zip", buildArchive(t))
	runID, _ := run["id"].(string)
	require.NotEmpty(t, runID, "run should have an ID")
	assert.True(t, strings.HasPrefix(runID, "run_"), "run ID should carry the run_ prefix")
	assert.Equal(t, "completed", run["status"])
	assert.Equal(t, "archive", run["source"])
	assert.Equal(t, "bw_export.zip", run["label"])
	assert.Equal(t, float64(3), run["record_count"], "the readme member should not count")

	// The run shows up in the listing
	var listing struct {
		Runs  []*models.AnalysisRun `json:"runs"`
		Count int                   `json:"count"`
	}
	getJSON(t, ts.URL+"/api/runs", &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, runID, listing.Runs[0].ID)

	// Summary table
	var summary models.AnalysisSummary
	getJSON(t, fmt.Sprintf("%s/api/runs/%s/tables/summary", ts.URL, runID), &summary)
	assert.Equal(t, 2, summary.TotalUseCases)
	assert.Equal(t, 2, summary.TotalProviders)
	assert.Equal(t, 3, summary.TotalLogs)
	assert.Equal(t, 3, summary.TotalUniqueFMs)
	assert.Equal(t, "Z_BILLING_POST, Z_FX_CONVERT, Z_REPORT_FEED", summary.TopFMs)

	// Forward table, sorted by use case then provider
	var forward []models.UseCaseProviderRow
	getJSON(t, fmt.Sprintf("%s/api/runs/%s/tables/usecase_provider_fm", ts.URL, runID), &forward)
	require.Len(t, forward, 3)
	assert.Equal(t, models.UseCaseProviderRow{UseCase: "Billing", Provider: "FLAT_FILE", FMList: "Z_BILLING_POST"}, forward[0])
	assert.Equal(t, models.UseCaseProviderRow{UseCase: "Billing", Provider: "HANA_CUBE", FMList: "Z_BILLING_POST, Z_FX_CONVERT"}, forward[1])
	assert.Equal(t, models.UseCaseProviderRow{UseCase: "Reporting", Provider: "HANA_CUBE", FMList: "Z_REPORT_FEED"}, forward[2])

	// Reverse table, sorted by FM
	var reverse []models.FMUseCaseRow
	getJSON(t, fmt.Sprintf("%s/api/runs/%s/tables/fm_usecase", ts.URL, runID), &reverse)
	require.Len(t, reverse, 3)
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_BILLING_POST", UseCases: "Billing"}, reverse[0])
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_FX_CONVERT", UseCases: "Billing"}, reverse[1])
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_REPORT_FEED", UseCases: "Reporting"}, reverse[2])

	// Unique FM list
	var unique []string
	getJSON(t, fmt.Sprintf("%s/api/runs/%s/tables/unique_fms", ts.URL, runID), &unique)
	assert.Equal(t, []string{"Z_BILLING_POST", "Z_FX_CONVERT", "Z_REPORT_FEED"}, unique)

	// Excel workbook download
	workbook, contentType, disposition := getRaw(t, fmt.Sprintf("%s/api/runs/%s/export/xlsx", ts.URL, runID))
	assert.Contains(t, contentType, "spreadsheetml")
	assert.Contains(t, disposition, `filename="analysis.xlsx"`)
	assert.True(t, bytes.HasPrefix(workbook, []byte("PK")), "workbook should be a ZIP container")

	// CSV download for one table
	csvBody, contentType, disposition := getRaw(t, fmt.Sprintf("%s/api/runs/%s/export/csv/unique_fms", ts.URL, runID))
	assert.Contains(t, contentType, "text/csv")
	assert.Contains(t, disposition, `filename="unique_fms.csv"`)
	assert.Equal(t, "fm\nZ_BILLING_POST\nZ_FX_CONVERT\nZ_REPORT_FEED\n", string(csvBody))

	// Summary PDF download
	pdfBody, contentType, disposition := getRaw(t, fmt.Sprintf("%s/api/runs/%s/export/pdf", ts.URL, runID))
	assert.Equal(t, "application/pdf", contentType)
	assert.Contains(t, disposition, `filename="summary.pdf"`)
	assert.True(t, bytes.HasPrefix(pdfBody, []byte("%PDF")), "summary should be a PDF document")

	// Bundle download carries all deliverables
	bundle, contentType, disposition := getRaw(t, fmt.Sprintf("%s/api/runs/%s/export/bundle", ts.URL, runID))
	assert.Equal(t, "application/zip", contentType)
	assert.Contains(t, disposition, `filename="bw_dependency_analysis.zip"`)

	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	require.NoError(t, err, "bundle should be a readable ZIP")
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"usecase_provider_fm.csv",
		"fm_usecase.csv",
		"unique_fms.csv",
		"summary.csv",
		"analysis.xlsx",
		"summary.pdf",
	}, names)

	// Delete the run
	assert.Equal(t, http.StatusNoContent, deleteRun(t, ts, runID))
	getJSON(t, ts.URL+"/api/runs", &listing)
	assert.Equal(t, 0, listing.Count)
}

// TestDirectoryAnalysisFlow analyzes an on-disk export tree through the
// directory endpoint.
func TestDirectoryAnalysisFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	root := t.TempDir()
	logDir := filepath.Join(root, "Billing", "HANA_CUBE", "Transformations")
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "dependency_log.txt"), []byte(sampleLog), 0o644))

	resp, err := http.Post(ts.URL+"/api/analyze/directory", "application/json",
		strings.NewReader(fmt.Sprintf(`{"path": %q}`, root)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run models.AnalysisRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.RunSourceDirectory, run.Source)
	assert.Equal(t, 1, run.RecordCount)
	require.NotNil(t, run.Tables)
	assert.Equal(t, []string{"Z_BILLING_POST", "Z_FX_CONVERT"}, run.Tables.UniqueFMs)
}

// TestArchiveWithNoLogs maps an empty batch to a client error, not a crash.
func TestArchiveWithNoLogs(t *testing.T) {
	ts, _ := newTestServer(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("readme.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("nothing useful"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	body, contentType := archiveRequestBody(t, "empty.zip", buf.Bytes())
	resp, err := http.Post(ts.URL+"/api/analyze/archive", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// The failed attempt still shows up in the history, without tables.
	var listing struct {
		Runs []*models.AnalysisRun `json:"runs"`
	}
	getJSON(t, ts.URL+"/api/runs", &listing)
	require.Len(t, listing.Runs, 1)
	assert.Equal(t, models.RunStatusFailed, listing.Runs[0].Status)
	assert.Equal(t, "no valid dependency logs found", listing.Runs[0].Error)
	assert.Nil(t, listing.Runs[0].Tables)
}

// TestOperationalEndpoints covers status, version and health.
func TestOperationalEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	postArchive(t, ts, "bw_export.zip", buildArchive(t))

	var health map[string]string
	getJSON(t, ts.URL+"/api/health", &health)
	assert.Equal(t, "ok", health["status"])

	var version map[string]string
	getJSON(t, ts.URL+"/api/version", &version)
	assert.NotEmpty(t, version["version"])

	var status map[string]interface{}
	getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "memory", status["storage_mode"])
	assert.Equal(t, float64(1), status["run_count"])
}
