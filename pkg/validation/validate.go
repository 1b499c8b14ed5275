package validation

import (
	"fmt"
	"sync"

	"chatstream/pkg/models"
)

// Rules constrains incoming messages before they are persisted.
type Rules struct {
	// Roles lists the accepted role values; empty allows any.
	Roles []string
	// MaxParts caps parts per message; zero means unlimited.
	MaxParts int
	// MaxTextBytes caps the combined text size per message; zero means
	// unlimited.
	MaxTextBytes int
	// Required lists part types that must appear at least once.
	Required []string
}

var (
	rulesMu sync.RWMutex
	rules   = Rules{
		Roles:    []string{models.RoleUser, models.RoleAssistant, models.RoleSystem},
		MaxParts: 64,
	}
)

// SetRules replaces the active rule set.
func SetRules(r Rules) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules = r
}

// ValidateMessage checks a message against the active rules.
func ValidateMessage(m models.Message) error {
	rulesMu.RLock()
	r := rules
	rulesMu.RUnlock()

	if len(r.Roles) > 0 {
		ok := false
		for _, role := range r.Roles {
			if m.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid role: %q", m.Role)
		}
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message has no parts")
	}
	if r.MaxParts > 0 && len(m.Parts) > r.MaxParts {
		return fmt.Errorf("too many parts: %d (max %d)", len(m.Parts), r.MaxParts)
	}
	textBytes := 0
	seen := map[string]bool{}
	for i, p := range m.Parts {
		switch p.Type {
		case models.PartText:
			if p.Text == "" {
				return fmt.Errorf("part %d: empty text", i)
			}
			textBytes += len(p.Text)
		case models.PartData:
			if len(p.Data) == 0 {
				return fmt.Errorf("part %d: empty data", i)
			}
		default:
			return fmt.Errorf("part %d: unknown type %q", i, p.Type)
		}
		seen[p.Type] = true
	}
	if r.MaxTextBytes > 0 && textBytes > r.MaxTextBytes {
		return fmt.Errorf("text too large: %d bytes (max %d)", textBytes, r.MaxTextBytes)
	}
	for _, req := range r.Required {
		if !seen[req] {
			return fmt.Errorf("missing required part type: %q", req)
		}
	}
	return nil
}
