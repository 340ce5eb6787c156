package schema

// Reserved physical table names used by the storage session for edges,
// provenance, and registry bookkeeping. View creation consults this
// registry rather than relying on a name-prefix convention.
const (
	SymbolTable     = "__symtable"   // view/table registry
	MembershipTable = "__membership" // view membership (id -> view name)
	QueriesTable    = "__queries"    // batch provenance (id -> batch id)
	RefListTable    = "__reflist"    // 1:N reference edges
	ContainsTable   = "__contains"   // envelope -> member containment edges
	ColumnsTable    = "__columns"    // object path -> physical column name
)

var reserved = map[string]struct{}{
	SymbolTable:     {},
	MembershipTable: {},
	QueriesTable:    {},
	RefListTable:    {},
	ContainsTable:   {},
	ColumnsTable:    {},
}

// ReservedNames returns every reserved physical table name.
func ReservedNames() []string {
	return []string{
		SymbolTable, MembershipTable, QueriesTable,
		RefListTable, ContainsTable, ColumnsTable,
	}
}

// IsReserved reports whether name is claimed by internal bookkeeping and
// may not be used for a user view or table.
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}
