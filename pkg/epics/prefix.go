package epics

// PrefixParts holds the two halves of a PV prefix: the leading textual
// base and the trailing numeric index. Camera PVs on the MCTOptics IOC
// share one base and index but differ in a token inserted between them
// ("2bm:MCTOptics:CameraPos0" vs "2bm:MCTOptics:CameraName0"), so the
// split is done once and the siblings are derived from the same parts.
type PrefixParts struct {
	Base   string
	Suffix string
}

// SplitPrefix separates the maximal trailing run of decimal digits from
// an identifier. The split is total: an identifier without trailing
// digits yields an empty Suffix, an all-digit identifier an empty Base,
// and Base+Suffix always reconstructs the input.
func SplitPrefix(identifier string) PrefixParts {
	i := len(identifier)
	for i > 0 && identifier[i-1] >= '0' && identifier[i-1] <= '9' {
		i--
	}
	return PrefixParts{Base: identifier[:i], Suffix: identifier[i:]}
}

// Format builds a sibling PV name by inserting token between the base
// and the trailing index.
func (p PrefixParts) Format(token string) string {
	return p.Base + token + p.Suffix
}

func (p PrefixParts) String() string {
	return p.Base + p.Suffix
}
