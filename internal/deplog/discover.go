// -----------------------------------------------------------------------
// Log Discovery - locate dependency logs in archives, uploads and folders
// All three strategies feed the same parser and identity resolver and
// degrade to "fewer records" on per-file problems.
// -----------------------------------------------------------------------

package deplog

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
)

// Scanner discovers dependency logs and turns them into records.
type Scanner struct {
	logger   arbor.ILogger
	provider string // Provider recorded for uploads, which carry no folder structure
}

// NewScanner creates a scanner. A nil logger falls back to the service logger.
func NewScanner(logger arbor.ILogger) *Scanner {
	return NewScannerWithProvider(logger, models.ProviderUnknown)
}

// NewScannerWithProvider creates a scanner with a custom provider sentinel
// for uploaded logs.
func NewScannerWithProvider(logger arbor.ILogger, provider string) *Scanner {
	if logger == nil {
		logger = common.GetLogger()
	}
	if provider == "" {
		provider = models.ProviderUnknown
	}
	return &Scanner{logger: logger, provider: provider}
}

// DecodeText converts raw file bytes to text, replacing undecodable byte
// sequences instead of failing. BW exports are nominally UTF-8 but archives
// occasionally carry legacy-encoded fragments.
func DecodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// ScanArchive reads a ZIP archive and produces one record per member whose
// full path mentions a dependency log and whose folder structure yields a
// resolvable identity. Members that cannot be resolved or read are skipped;
// only an unreadable archive container is a hard failure.
func (s *Scanner) ScanArchive(data []byte) ([]models.DependencyRecord, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	records := make([]models.DependencyRecord, 0)
	for _, member := range reader.File {
		if member.FileInfo().IsDir() || strings.HasSuffix(member.Name, "/") {
			continue
		}
		if !mentionsDependencyLog(strings.ToLower(member.Name)) {
			continue
		}

		segments := splitArchivePath(member.Name)
		usecase, provider, ok := ResolveIdentity(segments)
		if !ok {
			s.logger.Debug().Str("member", member.Name).Msg("Skipping archive member without resolvable identity")
			continue
		}

		text, err := readArchiveMember(member)
		if err != nil {
			s.logger.Warn().Err(err).Str("member", member.Name).Msg("Skipping unreadable archive member")
			continue
		}

		records = append(records, models.DependencyRecord{
			UseCase:         usecase,
			Provider:        provider,
			FunctionModules: ParseLog(text),
		})
	}

	return records, nil
}

// ParseUploadedLogs turns individually uploaded logs into records. Filenames
// carry no folder structure, so the use case is the filename minus its
// extension and the provider is the unknown sentinel. Files are processed in
// sorted name order so batches are deterministic.
func (s *Scanner) ParseUploadedLogs(files map[string]string) []models.DependencyRecord {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]models.DependencyRecord, 0, len(names))
	for _, name := range names {
		records = append(records, models.DependencyRecord{
			UseCase:         strings.TrimSuffix(name, filepath.Ext(name)),
			Provider:        s.provider,
			FunctionModules: ParseLog(files[name]),
		})
	}
	return records
}

// ScanDirectory walks a directory tree for dependency log files and resolves
// each file's identity from its directory path relative to the walk root.
// When a directory path has no Transformations segment, a synthetic anchor is
// appended so logs sitting directly inside a Transformations folder resolve
// correctly. Unreadable files and unresolvable directories are skipped; only
// a missing or unreadable root is a hard failure.
func (s *Scanner) ScanDirectory(root string) ([]models.DependencyRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", root)
	}

	records := make([]models.DependencyRecord, 0)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path during scan")
			return nil
		}
		if entry.IsDir() || !IsDependencyLogName(entry.Name()) {
			return nil
		}

		segments, err := directorySegments(root, filepath.Dir(path))
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping file outside scan root")
			return nil
		}

		usecase, provider, ok := ResolveIdentity(segments)
		if !ok {
			s.logger.Debug().Str("path", path).Msg("Skipping log without resolvable identity")
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable log file")
			return nil
		}

		records = append(records, models.DependencyRecord{
			UseCase:         usecase,
			Provider:        provider,
			FunctionModules: ParseLog(DecodeText(data)),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("directory scan failed: %w", walkErr)
	}

	return records, nil
}

// splitArchivePath splits a ZIP member path into its non-empty segments.
// ZIP member names always use forward slashes.
func splitArchivePath(member string) []string {
	parts := strings.Split(member, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// directorySegments returns the path segments of dir relative to root,
// appending a synthetic Transformations anchor when the path has none.
func directorySegments(root, dir string) ([]string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, err
	}

	var segments []string
	if rel != "." {
		segments = strings.Split(filepath.ToSlash(rel), "/")
	}

	for _, seg := range segments {
		if IsTransformationsSegment(seg) {
			return segments, nil
		}
	}
	return append(segments, transformationsAnchor), nil
}

func readArchiveMember(member *zip.File) (string, error) {
	rc, err := member.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return DecodeText(data), nil
}
