package models

// ProviderUnknown is the provider assigned to records whose origin path
// carries no usable folder structure, such as individually uploaded files.
const ProviderUnknown = "N/A"

// DependencyRecord is one discovered dependency log reduced to its identity
// and the function modules it references.
//
// UseCase and Provider come from the folder structure around the log file
// (see deplog.ResolveIdentity). FunctionModules is sorted and deduplicated
// at parse time and is never mutated afterwards.
type DependencyRecord struct {
	UseCase         string   `json:"usecase"`
	Provider        string   `json:"provider"`
	FunctionModules []string `json:"function_modules"`
}

// HasFunctionModules reports whether the log yielded at least one FM call.
// Records without FM calls still count toward use case and provider totals.
func (r *DependencyRecord) HasFunctionModules() bool {
	return len(r.FunctionModules) > 0
}
