package integration

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/app"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/server"
)

// newTestServer boots the full application with in-memory storage and
// serves its router through httptest.
func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Storage.Badger.InMemory = true
	config.Retention.Enabled = false
	config.Docs.Dir = t.TempDir()

	application, err := app.New(config, arbor.NewLogger())
	require.NoError(t, err, "application should initialize")
	t.Cleanup(func() { application.Close() })

	ts := httptest.NewServer(server.New(application).Handler())
	t.Cleanup(ts.Close)
	return ts, application
}

// sampleLog is a minimal well-formed dependency log: a header row, two FM
// call rows and one non-FM row.
const sampleLog = "OBJECT;SUBOBJECT;KIND;NAME;STATEMENT\n" +
	"ZTRAN_SALES;ROUTINE_01;FM;Z_BILLING_POST;CALL FUNCTION 'Z_BILLING_POST'\n" +
	"ZTRAN_SALES;ROUTINE_01;TABLE;ZSALES_ITEMS;SELECT * FROM zsales_items\n" +
	"ZTRAN_SALES;ROUTINE_02;FM;Z_FX_CONVERT;CALL FUNCTION 'Z_FX_CONVERT'\n"

// buildArchive assembles an in-memory ZIP shaped like a BW export tree:
// three dependency logs across two use cases, plus a member the analyzer
// must ignore.
func buildArchive(t *testing.T) []byte {
	t.Helper()

	members := []struct {
		name    string
		content string
	}{
		{"Billing/HANA_CUBE/Transformations/dependency_log.txt", sampleLog},
		{"Billing/FLAT_FILE/Transformations/dependency_log.txt", "A;B;FM;Z_BILLING_POST;CALL FUNCTION 'Z_BILLING_POST'\n"},
		{"Reporting/HANA_CUBE/Transformations/logs/dependency_log_2.txt", "A;B;FM;Z_REPORT_FEED;CALL FUNCTION 'Z_REPORT_FEED'\n"},
		{"readme.txt", "not a dependency log"},
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		f, err := w.Create(m.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(m.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// archiveRequestBody builds the multipart body for an archive upload and
// returns it with its content type.
func archiveRequestBody(t *testing.T, filename string, archive []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("archive", filename)
	require.NoError(t, err)
	_, err = fw.Write(archive)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

// postArchive uploads a ZIP to the analyze endpoint and returns the
// decoded run response.
func postArchive(t *testing.T, ts *httptest.Server, filename string, archive []byte) map[string]interface{} {
	t.Helper()

	body, contentType := archiveRequestBody(t, filename, archive)
	resp, err := http.Post(ts.URL+"/api/analyze/archive", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "archive analysis should succeed")

	var run map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	return run
}

// getJSON fetches a URL and decodes the JSON response into out.
func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET %s", url)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// getRaw fetches a URL and returns the body plus selected headers.
func getRaw(t *testing.T, url string) ([]byte, string, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET %s", url)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return data, resp.Header.Get("Content-Type"), resp.Header.Get("Content-Disposition")
}

func deleteRun(t *testing.T, ts *httptest.Server, id string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/runs/%s", ts.URL, id), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}
