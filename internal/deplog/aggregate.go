package deplog

import (
	"sort"
	"strings"

	"github.com/ternarybob/indago/internal/models"
)

const defaultTopFMCount = 5

// Aggregate builds the four cross-reference tables from a batch of records
// with the default top-5 FM ranking.
func Aggregate(records []models.DependencyRecord) (*models.CrossRefTables, error) {
	return AggregateTop(records, defaultTopFMCount)
}

// AggregateTop builds the four cross-reference tables from a batch of records.
// Every record contributes a forward row even when its FM set is empty; only
// records with FMs feed the reverse mapping, unique list and top-N ranking.
// A topN below 1 falls back to the default of 5. Returns models.ErrNoRecords
// for an empty batch.
func AggregateTop(records []models.DependencyRecord, topN int) (*models.CrossRefTables, error) {
	if len(records) == 0 {
		return nil, models.ErrNoRecords
	}
	if topN < 1 {
		topN = defaultTopFMCount
	}

	forward := make([]models.UseCaseProviderRow, 0, len(records))
	fmToUseCases := make(map[string]map[string]struct{})
	usecases := make(map[string]struct{})
	providers := make(map[string]struct{})

	for _, rec := range records {
		forward = append(forward, models.UseCaseProviderRow{
			UseCase:  rec.UseCase,
			Provider: rec.Provider,
			FMList:   strings.Join(rec.FunctionModules, ", "),
		})
		usecases[rec.UseCase] = struct{}{}
		providers[rec.Provider] = struct{}{}

		for _, fm := range rec.FunctionModules {
			if fmToUseCases[fm] == nil {
				fmToUseCases[fm] = make(map[string]struct{})
			}
			fmToUseCases[fm][rec.UseCase] = struct{}{}
		}
	}

	sort.SliceStable(forward, func(i, j int) bool {
		if forward[i].UseCase != forward[j].UseCase {
			return forward[i].UseCase < forward[j].UseCase
		}
		return forward[i].Provider < forward[j].Provider
	})

	uniqueFMs := make([]string, 0, len(fmToUseCases))
	for fm := range fmToUseCases {
		uniqueFMs = append(uniqueFMs, fm)
	}
	sort.Strings(uniqueFMs)

	reverse := make([]models.FMUseCaseRow, 0, len(uniqueFMs))
	for _, fm := range uniqueFMs {
		reverse = append(reverse, models.FMUseCaseRow{
			FM:       fm,
			UseCases: joinSet(fmToUseCases[fm]),
		})
	}

	return &models.CrossRefTables{
		UseCaseProviderRows: forward,
		FMUseCaseRows:       reverse,
		UniqueFMs:           uniqueFMs,
		Summary: models.AnalysisSummary{
			TotalUseCases:  len(usecases),
			TotalProviders: len(providers),
			TotalLogs:      len(records),
			TotalUniqueFMs: len(uniqueFMs),
			TopFMs:         topFMs(uniqueFMs, fmToUseCases, topN),
		},
	}, nil
}

// topFMs ranks FMs by how many distinct use cases call them, descending,
// with ties broken by name, and joins the top n.
func topFMs(fms []string, fmToUseCases map[string]map[string]struct{}, n int) string {
	ranked := make([]string, len(fms))
	copy(ranked, fms)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := len(fmToUseCases[ranked[i]]), len(fmToUseCases[ranked[j]])
		if ci != cj {
			return ci > cj
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return strings.Join(ranked, ", ")
}

func joinSet(set map[string]struct{}) string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}
