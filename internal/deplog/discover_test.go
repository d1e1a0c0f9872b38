package deplog

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/indago/internal/models"
)

const sampleLog = "ranid;Container;Kind;Name;Where;Line;Note\n" +
	"1;C1;FM;Z_READ;CALL FUNCTION 'Z_READ';10;\n" +
	"2;C1;FM;Z_WRITE;CALL FUNCTION 'Z_WRITE';11;\n"

func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestScanArchive(t *testing.T) {
	data := buildZip(t, map[string]string{
		"Root/Finance/SAP_BW/Transformations/dependencies_log.txt": sampleLog,
		"Root/HR/Oracle/Transformations/Dependencies_Log":          "1;C1;FM;Z_HR;CALL FUNCTION;1;\n",
		"Root/Finance/notes/readme.txt":                            "not a log",
		"dependencies_log.txt":                                     sampleLog,
	})

	scanner := NewScanner(nil)
	records, err := scanner.ScanArchive(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byUseCase := make(map[string]models.DependencyRecord)
	for _, rec := range records {
		byUseCase[rec.UseCase] = rec
	}

	finance, ok := byUseCase["Finance"]
	require.True(t, ok, "expected a record for Finance")
	assert.Equal(t, "SAP_BW", finance.Provider)
	assert.Equal(t, []string{"Z_READ", "Z_WRITE"}, finance.FunctionModules)

	hr, ok := byUseCase["HR"]
	require.True(t, ok, "expected a record for HR")
	assert.Equal(t, "Oracle", hr.Provider)
	assert.Equal(t, []string{"Z_HR"}, hr.FunctionModules)
}

func TestScanArchiveEmptyFMSet(t *testing.T) {
	data := buildZip(t, map[string]string{
		"UC/P/Transformations/dependencies_log.txt": "ranid;Container;Kind;Name;Where;Line;Note\n",
	})

	records, err := NewScanner(nil).ScanArchive(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "UC", records[0].UseCase)
	assert.Equal(t, "P", records[0].Provider)
	assert.Empty(t, records[0].FunctionModules)
}

func TestScanArchiveReplacesInvalidBytes(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("UC/P/Transformations/dependencies_log.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("1;C1;FM;Z_LATIN;CALL FUNCTION \xff\xfe;1;\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	records, err := NewScanner(nil).ScanArchive(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Z_LATIN"}, records[0].FunctionModules)
}

func TestScanArchiveNotAZip(t *testing.T) {
	_, err := NewScanner(nil).ScanArchive([]byte("definitely not an archive"))
	assert.Error(t, err)
}

func TestParseUploadedLogs(t *testing.T) {
	scanner := NewScanner(nil)
	records := scanner.ParseUploadedLogs(map[string]string{
		"zeta_dependencies_log.txt": "1;C1;FM;Z_ZETA;CALL FUNCTION;1;\n",
		"alpha_dependencies_log":    "1;C1;FM;Z_ALPHA;CALL FUNCTION;1;\n",
	})

	require.Len(t, records, 2)
	assert.Equal(t, "alpha_dependencies_log", records[0].UseCase)
	assert.Equal(t, "zeta_dependencies_log", records[1].UseCase)
	for _, rec := range records {
		assert.Equal(t, models.ProviderUnknown, rec.Provider)
	}
	assert.Equal(t, []string{"Z_ALPHA"}, records[0].FunctionModules)
}

func TestParseUploadedLogsEmpty(t *testing.T) {
	records := NewScanner(nil).ParseUploadedLogs(map[string]string{})
	assert.Empty(t, records)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Finance/SAP_BW/Transformations/dependencies_log.txt": sampleLog,
		"HR/Oracle/Transformations/dependency_log":            "1;C1;FM;Z_HR;CALL FUNCTION;1;\n",
		"Finance/SAP_BW/Transformations/report.xlsx":          "binary",
		"Orphan/dependencies_log.txt":                         sampleLog,
		"dependencies_log.txt":                                sampleLog,
	})

	records, err := NewScanner(nil).ScanDirectory(root)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Finance", records[0].UseCase)
	assert.Equal(t, "SAP_BW", records[0].Provider)
	assert.Equal(t, []string{"Z_READ", "Z_WRITE"}, records[0].FunctionModules)

	assert.Equal(t, "HR", records[1].UseCase)
	assert.Equal(t, "Oracle", records[1].Provider)
}

// Logs below the anchor still resolve against the segments above it.
func TestScanDirectoryNestedBelowAnchor(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Sales/HANA/Transformations/batch_01/dependencies_log.txt": sampleLog,
	})

	records, err := NewScanner(nil).ScanDirectory(root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Sales", records[0].UseCase)
	assert.Equal(t, "HANA", records[0].Provider)
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	_, err := NewScanner(nil).ScanDirectory(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestScanDirectoryRootIsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewScanner(nil).ScanDirectory(path)
	assert.Error(t, err)
}
