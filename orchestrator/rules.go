package orchestrator

import (
	"os"
	"strings"

	"github.com/meikuraledutech/chat"
)

// Rule routes a turn to a capability when Match reports true.
type Rule struct {
	Name       string
	Match      func(t Turn) bool
	Capability chat.Capability
}

// DefaultRules is the routing table, evaluated top to bottom. The first match
// wins and general is the fallback.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "image-command", Match: textContainsAny("/image", "generate image"), Capability: chat.CapabilityImage},
		{Name: "attached-image", Match: hasImageOnDisk, Capability: chat.CapabilityVision},
		{Name: "code-keywords", Match: textContainsAny("code", "script", "function"), Capability: chat.CapabilityCode},
		{Name: "logic-keywords", Match: textContainsAny("think", "logic", "reason"), Capability: chat.CapabilityLogic},
	}
}

// Route returns the capability of the first matching rule, or general.
func Route(rules []Rule, t Turn) chat.Capability {
	for _, r := range rules {
		if r.Match(t) {
			return r.Capability
		}
	}
	return chat.CapabilityGeneral
}

// textContainsAny matches case-insensitive substrings of the raw text.
func textContainsAny(needles ...string) func(Turn) bool {
	return func(t Turn) bool {
		text := strings.ToLower(t.Text)
		for _, n := range needles {
			if strings.Contains(text, n) {
				return true
			}
		}
		return false
	}
}

func hasImageOnDisk(t Turn) bool {
	return t.Image != "" && fileExists(t.Image)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
