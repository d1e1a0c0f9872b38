package deplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/indago/internal/models"
)

func TestAggregate(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "UC1", Provider: "P1", FunctionModules: []string{"Z_BAR", "Z_FOO"}},
		{UseCase: "UC2", Provider: "P1", FunctionModules: []string{"Z_FOO"}},
	}

	tables, err := Aggregate(records)
	require.NoError(t, err)

	require.Len(t, tables.UseCaseProviderRows, 2)
	assert.Equal(t, models.UseCaseProviderRow{UseCase: "UC1", Provider: "P1", FMList: "Z_BAR, Z_FOO"}, tables.UseCaseProviderRows[0])
	assert.Equal(t, models.UseCaseProviderRow{UseCase: "UC2", Provider: "P1", FMList: "Z_FOO"}, tables.UseCaseProviderRows[1])

	require.Len(t, tables.FMUseCaseRows, 2)
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_BAR", UseCases: "UC1"}, tables.FMUseCaseRows[0])
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_FOO", UseCases: "UC1, UC2"}, tables.FMUseCaseRows[1])

	assert.Equal(t, []string{"Z_BAR", "Z_FOO"}, tables.UniqueFMs)

	assert.Equal(t, 2, tables.Summary.TotalUseCases)
	assert.Equal(t, 1, tables.Summary.TotalProviders)
	assert.Equal(t, 2, tables.Summary.TotalLogs)
	assert.Equal(t, 2, tables.Summary.TotalUniqueFMs)
	assert.Equal(t, "Z_FOO, Z_BAR", tables.Summary.TopFMs)
}

func TestAggregateEmptyBatch(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, models.ErrNoRecords)

	_, err = Aggregate([]models.DependencyRecord{})
	assert.ErrorIs(t, err, models.ErrNoRecords)
}

// A record with no FM calls still occupies a forward row and counts toward
// the log total, but contributes nothing to the FM-side tables.
func TestAggregateRecordWithoutFMs(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "UC1", Provider: "P1", FunctionModules: nil},
		{UseCase: "UC2", Provider: "P2", FunctionModules: []string{"Z_ONLY"}},
	}

	tables, err := Aggregate(records)
	require.NoError(t, err)

	require.Len(t, tables.UseCaseProviderRows, 2)
	assert.Equal(t, "", tables.UseCaseProviderRows[0].FMList)
	assert.Len(t, tables.FMUseCaseRows, 1)
	assert.Equal(t, []string{"Z_ONLY"}, tables.UniqueFMs)
	assert.Equal(t, 2, tables.Summary.TotalLogs)
	assert.Equal(t, 1, tables.Summary.TotalUniqueFMs)
}

func TestAggregateForwardTableSorted(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "Zulu", Provider: "B"},
		{UseCase: "Alpha", Provider: "Z"},
		{UseCase: "Alpha", Provider: "A"},
		{UseCase: "Mike", Provider: "M"},
	}

	tables, err := Aggregate(records)
	require.NoError(t, err)

	var got []string
	for _, row := range tables.UseCaseProviderRows {
		got = append(got, row.UseCase+"/"+row.Provider)
	}
	assert.Equal(t, []string{"Alpha/A", "Alpha/Z", "Mike/M", "Zulu/B"}, got)
}

func TestAggregateTopFMsRanking(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "UC1", Provider: "P", FunctionModules: []string{"Z_A", "Z_B", "Z_C", "Z_D", "Z_E", "Z_F"}},
		{UseCase: "UC2", Provider: "P", FunctionModules: []string{"Z_B", "Z_C", "Z_D", "Z_E", "Z_F"}},
		{UseCase: "UC3", Provider: "P", FunctionModules: []string{"Z_C", "Z_D", "Z_E", "Z_F"}},
		{UseCase: "UC4", Provider: "P", FunctionModules: []string{"Z_F"}},
	}

	tables, err := Aggregate(records)
	require.NoError(t, err)

	// Z_F appears in 4 use cases, Z_C/Z_D/Z_E in 3 (name order breaks the
	// tie), Z_B in 2; Z_A misses the cut.
	assert.Equal(t, "Z_F, Z_C, Z_D, Z_E, Z_B", tables.Summary.TopFMs)
}

func TestAggregateTopCustomCount(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "UC1", Provider: "P", FunctionModules: []string{"Z_A", "Z_B", "Z_C"}},
		{UseCase: "UC2", Provider: "P", FunctionModules: []string{"Z_B", "Z_C"}},
		{UseCase: "UC3", Provider: "P", FunctionModules: []string{"Z_C"}},
	}

	tables, err := AggregateTop(records, 2)
	require.NoError(t, err)
	assert.Equal(t, "Z_C, Z_B", tables.Summary.TopFMs)

	// A nonsense count falls back to the default five.
	tables, err = AggregateTop(records, 0)
	require.NoError(t, err)
	assert.Equal(t, "Z_C, Z_B, Z_A", tables.Summary.TopFMs)
}

func TestAggregateDuplicateUseCaseCountedOnce(t *testing.T) {
	records := []models.DependencyRecord{
		{UseCase: "UC1", Provider: "P1", FunctionModules: []string{"Z_X"}},
		{UseCase: "UC1", Provider: "P2", FunctionModules: []string{"Z_X"}},
	}

	tables, err := Aggregate(records)
	require.NoError(t, err)

	assert.Equal(t, 1, tables.Summary.TotalUseCases)
	assert.Equal(t, 2, tables.Summary.TotalProviders)
	assert.Equal(t, models.FMUseCaseRow{FM: "Z_X", UseCases: "UC1"}, tables.FMUseCaseRows[0])
	assert.Equal(t, 2, tables.Summary.TotalLogs)
}
