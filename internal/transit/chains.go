package transit

// DefaultChains is the source order per category when configuration does
// not override it.
//
//   - major and asteroid bodies prefer the remote services, which are the
//     most accurate and current, and fall back to local files and then the
//     flat datasets.
//   - trans-Neptunian objects and symbolic bodies try local files and the
//     flat datasets first; remote lookups of those identifiers are the
//     least reliable.
//   - fixed stars are converted from their catalogue position.
//
// Forced placeholder fallback is never on by default.
var DefaultChains = map[Category][]string{
	CategoryMajor:     {SourceHorizons, SourceMiriade, SourceLocalFile, SourceFlatFallback},
	CategoryAsteroid:  {SourceHorizons, SourceMiriade, SourceLocalFile, SourceFlatFallback},
	CategoryTNO:       {SourceLocalFile, SourceFlatFallback, SourceHorizons, SourceMiriade},
	CategoryFixedStar: {SourceFixedStar},
	CategorySymbolic:  {SourceLocalFile, SourceFlatFallback},
}

// SourceLabels lists every source label a chain may name.
var SourceLabels = []string{
	SourceHorizons, SourceMiriade, SourceLocalFile, SourceFlatFallback, SourceFixedStar, SourcePlaceholder,
}

// IsSourceLabel reports whether s names a known source.
func IsSourceLabel(s string) bool {
	for _, l := range SourceLabels {
		if s == l {
			return true
		}
	}
	return false
}
