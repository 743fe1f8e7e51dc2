package engine

// Builtin collections always exist for every account, with or without
// records, and never get a persisted collection entity.
var builtinCollections = []string{
	"bookmarks",
	"clients",
	"crypto",
	"forms",
	"history",
	"keys",
	"meta",
	"passwords",
	"prefs",
	"tabs",
}

var builtinSet = func() map[string]bool {
	m := make(map[string]bool, len(builtinCollections))
	for _, name := range builtinCollections {
		m[name] = true
	}
	return m
}()

// IsBuiltin reports whether name is one of the well-known collections.
func IsBuiltin(name string) bool {
	return builtinSet[name]
}

// BuiltinCollections returns the well-known collection names.
func BuiltinCollections() []string {
	out := make([]string, len(builtinCollections))
	copy(out, builtinCollections)
	return out
}
