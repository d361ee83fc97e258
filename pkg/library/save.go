package library

import (
	"fmt"
	"os"

	"rigdiogo/pkg/cue"

	"gopkg.in/yaml.v3"
)

// Marshal renders the team in the YAML team file format. Cue files are
// written relative to the team file.
func Marshal(t *Team) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value any) error {
		var v yaml.Node
		if err := v.Encode(value); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
		return nil
	}

	if err := add("name", t.Name); err != nil {
		return nil, err
	}
	for _, sec := range []struct {
		key  string
		cues []*cue.Cue
	}{
		{RosterAnthem, t.Anthem},
		{RosterGoal, t.Goal},
		{RosterVictory, t.Victory},
		{RosterChant, t.Chants},
	} {
		if len(sec.cues) == 0 {
			continue
		}
		if err := add(sec.key, records(sec.cues)); err != nil {
			return nil, err
		}
	}

	for _, group := range []struct {
		key   string
		order []string
		cues  map[string][]*cue.Cue
	}{
		{"players", t.PlayerOrder, t.Players},
		{"events", t.EventOrder, t.Events},
	} {
		if len(group.order) == 0 {
			continue
		}
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range group.order {
			var v yaml.Node
			if err := v.Encode(records(group.cues[name])); err != nil {
				return nil, fmt.Errorf("encode %s %s: %w", group.key, name, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, &v)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: group.key}, m)
	}

	return yaml.Marshal(doc)
}

func records(cues []*cue.Cue) []any {
	out := make([]any, 0, len(cues))
	for _, c := range cues {
		out = append(out, c.Record())
	}
	return out
}

// Save writes the team to path.
func Save(path string, t *Team) error {
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write team file: %w", err)
	}
	return nil
}
