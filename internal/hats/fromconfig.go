package hats

import "github.com/hatloop/hatloop/internal/topic"

// ConfiguredHat is the minimal shape main needs from config.HatConfig;
// defined here rather than importing internal/config, which would
// create an import cycle (config has no reason to know about hats).
type ConfiguredHat struct {
	ID              string
	Name            string
	Triggers        []string
	Publishes       []string
	Instructions    string
	BackendOverride string
}

// FromConfig converts the YAML-shaped hat configs into the Hat values
// NewRegistry expects, turning each trigger/publish string into a Topic.
func FromConfig(configured []ConfiguredHat) []Hat {
	out := make([]Hat, 0, len(configured))
	for _, c := range configured {
		h := Hat{
			ID:              c.ID,
			DisplayName:     c.Name,
			Instructions:    c.Instructions,
			BackendOverride: c.BackendOverride,
		}
		for _, t := range c.Triggers {
			h.Subscriptions = append(h.Subscriptions, topic.New(t))
		}
		for _, t := range c.Publishes {
			h.Publishes = append(h.Publishes, topic.New(t))
		}
		out = append(out, h)
	}
	return out
}
