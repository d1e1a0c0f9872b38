package models

// Table names double as worksheet names in the Excel workbook and as file
// stems for the per-table CSV downloads. They match the original BW analysis
// deliverable and must not be renamed.
const (
	TableUseCaseProviderFM = "usecase_provider_fm"
	TableFMUseCase         = "fm_usecase"
	TableUniqueFMs         = "unique_fms"
	TableSummary           = "summary"
)

// TableNames lists the cross-reference tables in presentation order.
var TableNames = []string{
	TableUseCaseProviderFM,
	TableFMUseCase,
	TableUniqueFMs,
	TableSummary,
}

// CSV header rows for each table, in column order.
var (
	HeaderUseCaseProviderFM = []string{"usecase", "provider", "fm_list"}
	HeaderFMUseCase         = []string{"fm", "usecases"}
	HeaderUniqueFMs         = []string{"fm"}
	HeaderSummary           = []string{
		"Total Use Cases",
		"Total Providers",
		"Total Logs Processed",
		"Total Unique FMs",
		"Top 5 Most Used FMs",
	}
)

// UseCaseProviderRow is one row of the forward cross-reference: a (use case,
// provider) pair with the comma-joined list of FMs its log references.
type UseCaseProviderRow struct {
	UseCase  string `json:"usecase"`
	Provider string `json:"provider"`
	FMList   string `json:"fm_list"`
}

// FMUseCaseRow is one row of the reverse cross-reference: a function module
// with the comma-joined list of distinct use cases that call it.
type FMUseCaseRow struct {
	FM       string `json:"fm"`
	UseCases string `json:"usecases"`
}

// AnalysisSummary is the single-row rollup across one analysis run.
type AnalysisSummary struct {
	TotalUseCases  int    `json:"total_usecases"`
	TotalProviders int    `json:"total_providers"`
	TotalLogs      int    `json:"total_logs"`
	TotalUniqueFMs int    `json:"total_unique_fms"`
	TopFMs         string `json:"top_fms"`
}

// CrossRefTables holds the four derived tables for one batch of dependency
// records. Built once by deplog.Aggregate and treated as read-only afterwards.
type CrossRefTables struct {
	UseCaseProviderRows []UseCaseProviderRow `json:"usecase_provider_fm"`
	FMUseCaseRows       []FMUseCaseRow       `json:"fm_usecase"`
	UniqueFMs           []string             `json:"unique_fms"`
	Summary             AnalysisSummary      `json:"summary"`
}
