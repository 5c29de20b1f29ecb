package governance

import "strings"

// FilterEnvVars returns environment variables with denied patterns removed,
// and the names that were blocked.
func (g *Engine) FilterEnvVars(env []string) ([]string, []string) {
	if len(g.DenyEnvVars) == 0 {
		return env, nil
	}
	var filtered []string
	var blocked []string
	for _, e := range env {
		name, _, _ := strings.Cut(e, "=")
		if err := g.CheckEnvVar(name); err != nil {
			blocked = append(blocked, name)
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, blocked
}
