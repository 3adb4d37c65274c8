package value

// Type symbols: the single leading byte of every encoded Value.
const (
	SymInt      = '#'
	SymFloat    = '%'
	SymBytes    = '\''
	SymStr      = '"'
	SymList     = '['
	SymTuple    = '('
	SymBool     = '?'
	SymDatetime = '+'
)
