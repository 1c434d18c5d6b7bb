package oidc

// strListContains looks for a string in a list of strings.
func strListContains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
