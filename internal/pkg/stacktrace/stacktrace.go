package stacktrace

import "strings"

// InternalPaths returns the "internal/<pkg>/<file>.go:<line>" frames of a raw
// stack trace, innermost first.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)

	for _, line := range lines {
		line = strings.TrimSpace(line)

		_, rest, ok := strings.Cut(line, "/internal/")
		if !ok {
			continue
		}

		file, _, _ := strings.Cut(rest, " ")
		if !strings.Contains(file, ".go:") {
			continue
		}

		paths = append(paths, "internal/"+file)
	}

	return paths
}
