package session

import "gram/internal/config"

// DefaultSessionName is used when nothing else names a session.
const DefaultSessionName = "main"

// Resolve picks the active session name: the --session flag wins, then
// default_session from config.toml, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
