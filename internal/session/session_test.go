package session

import (
	"strings"
	"testing"
)

func TestPathsAreSessionScoped(t *testing.T) {
	for name, path := range map[string]string{
		"db":       AppDBPath("work"),
		"lock":     LockPath("work"),
		"log":      LogPath("work"),
		"telegram": TelegramSessionPath("work"),
	} {
		if !strings.Contains(path, "/sessions/work/") {
			t.Errorf("%s path = %q, want under the session directory", name, path)
		}
	}
	if strings.Contains(ConfigPath(), "/sessions/") {
		t.Errorf("config path = %q, want session-independent", ConfigPath())
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"main", "work-2", "a_b"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "UPPER", "has space", "dot.name", strings.Repeat("x", 65)} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) should fail", name)
		}
	}
}
