package deplog

import "strings"

// transformationsAnchor is the marker folder the BW export convention places
// directly above the dependency logs:
//
//	.../<UseCase>/<Provider>/Transformations/dependencies_log*
const transformationsAnchor = "Transformations"

// IsTransformationsSegment reports whether a path segment is the
// Transformations anchor, case-insensitively.
func IsTransformationsSegment(segment string) bool {
	return strings.EqualFold(segment, transformationsAnchor)
}

// IsDependencyLogName reports whether a filename looks like a dependency log
// export. Accepts variants like dependencies_log, Dependency_Log.txt and
// dependencylog.log; the extension must be .txt, .log or absent.
func IsDependencyLogName(name string) bool {
	lower := strings.ToLower(name)
	if !mentionsDependencyLog(lower) {
		return false
	}
	return strings.HasSuffix(lower, ".txt") ||
		strings.HasSuffix(lower, ".log") ||
		!strings.Contains(lower, ".")
}

func mentionsDependencyLog(lower string) bool {
	return strings.Contains(lower, "depend") && strings.Contains(lower, "log")
}

// ResolveIdentity infers (usecase, provider) from ordered path segments by
// anchoring on the first Transformations segment: the provider is the segment
// directly before it, the use case the segment before that. Original casing
// is preserved. Returns ok=false when the anchor is missing, sits fewer than
// two segments in, or either inferred value is empty.
func ResolveIdentity(segments []string) (usecase, provider string, ok bool) {
	idx := -1
	for i, seg := range segments {
		if IsTransformationsSegment(seg) {
			idx = i
			break
		}
	}
	if idx < 2 {
		return "", "", false
	}

	usecase = segments[idx-2]
	provider = segments[idx-1]
	if usecase == "" || provider == "" {
		return "", "", false
	}
	return usecase, provider, true
}
