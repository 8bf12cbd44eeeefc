package jobs

import "strings"

// ParseRoute extracts the run ID and action from a URL path like
// /api/runs/{id}/{action}. apiPrefix should be like "/api/runs/".
// The ID is returned in normalized form.
func ParseRoute(path, apiPrefix string) (runID, action string, ok bool) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", "", false
	}

	runID, ok = NormalizeRunID(parts[0])
	if !ok {
		return "", "", false
	}
	return runID, parts[1], true
}
