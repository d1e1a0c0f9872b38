package deplog

import "testing"

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name         string
		segments     []string
		wantUseCase  string
		wantProvider string
		wantOK       bool
	}{
		{
			name:         "standard layout",
			segments:     []string{"Finance", "SAP_BW", "Transformations", "dependencies_log.txt"},
			wantUseCase:  "Finance",
			wantProvider: "SAP_BW",
			wantOK:       true,
		},
		{
			name:         "extra prefix depth tolerated",
			segments:     []string{"Root", "Export", "Finance", "SAP_BW", "Transformations", "dependencies_log.txt"},
			wantUseCase:  "Finance",
			wantProvider: "SAP_BW",
			wantOK:       true,
		},
		{
			name:         "anchor is case-insensitive but casing preserved",
			segments:     []string{"finance", "Sap_Bw", "TRANSFORMATIONS", "log"},
			wantUseCase:  "finance",
			wantProvider: "Sap_Bw",
			wantOK:       true,
		},
		{
			name:         "first anchor wins",
			segments:     []string{"A", "B", "Transformations", "C", "Transformations"},
			wantUseCase:  "A",
			wantProvider: "B",
			wantOK:       true,
		},
		{
			name:     "anchor at index zero",
			segments: []string{"Transformations", "dependencies_log.txt"},
			wantOK:   false,
		},
		{
			name:     "anchor at index one",
			segments: []string{"Provider", "Transformations", "dependencies_log.txt"},
			wantOK:   false,
		},
		{
			name:     "no anchor",
			segments: []string{"Finance", "SAP_BW", "Exports", "dependencies_log.txt"},
			wantOK:   false,
		},
		{
			name:     "empty segments",
			segments: nil,
			wantOK:   false,
		},
		{
			name:     "empty provider segment rejected",
			segments: []string{"Finance", "", "Transformations"},
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usecase, provider, ok := ResolveIdentity(tt.segments)
			if ok != tt.wantOK {
				t.Fatalf("ResolveIdentity() ok = %v, expected %v", ok, tt.wantOK)
			}
			if usecase != tt.wantUseCase {
				t.Errorf("usecase = %q, expected %q", usecase, tt.wantUseCase)
			}
			if provider != tt.wantProvider {
				t.Errorf("provider = %q, expected %q", provider, tt.wantProvider)
			}
		})
	}
}

func TestIsDependencyLogName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"dependencies_log", true},
		{"Dependencies_Log.txt", true},
		{"dependency_log.LOG", true},
		{"dependencylog", true},
		{"DEPENDENCIES_LOG.TXT", true},
		{"dependencies_log.xlsx", false},
		{"dependencies_log.zip", false},
		{"dependencies.txt", false},
		{"log.txt", false},
		{"readme.md", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDependencyLogName(tt.name); got != tt.expected {
				t.Errorf("IsDependencyLogName(%q) = %v, expected %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestIsTransformationsSegment(t *testing.T) {
	if !IsTransformationsSegment("Transformations") {
		t.Error("expected exact anchor to match")
	}
	if !IsTransformationsSegment("transformations") {
		t.Error("expected lowercase anchor to match")
	}
	if IsTransformationsSegment("Transformation") {
		t.Error("singular form must not match")
	}
	if IsTransformationsSegment("Transformations2") {
		t.Error("suffixed form must not match")
	}
}
