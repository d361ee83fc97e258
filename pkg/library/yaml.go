package library

import (
	"fmt"
	"os"

	"rigdiogo/pkg/cue"
	"rigdiogo/pkg/rules"

	"gopkg.in/yaml.v3"
)

// teamDoc is the top level of a YAML team file. Roster values are kept as
// nodes so every entry can report its own line.
type teamDoc struct {
	Name    string    `yaml:"name"`
	Anthem  yaml.Node `yaml:"anthem"`
	Goal    yaml.Node `yaml:"goal"`
	Victory yaml.Node `yaml:"victory"`
	Chant   yaml.Node `yaml:"chant"`
	Players yaml.Node `yaml:"players"`
	Events  yaml.Node `yaml:"events"`
}

func (l *loader) loadYAML(home bool) (*Team, error) {
	data, err := os.ReadFile(l.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}
	var doc teamDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse team file %s: %w", l.file, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("team file %s: missing name", l.file)
	}

	team := newTeam(doc.Name, l.file, home)
	for _, sec := range []struct {
		roster string
		node   *yaml.Node
	}{
		{RosterAnthem, &doc.Anthem},
		{RosterGoal, &doc.Goal},
		{RosterVictory, &doc.Victory},
		{RosterChant, &doc.Chant},
	} {
		l.loadRoster(team, sec.node, sec.roster, rules.Owner{Player: sec.roster, Team: doc.Name, Home: home}, kindFor(sec.roster))
	}

	for name, node := range mappingPairs(&doc.Players) {
		if _, ok := team.Players[name]; !ok {
			team.PlayerOrder = append(team.PlayerOrder, name)
			team.Players[name] = nil
		}
		l.loadRoster(team, node, name, rules.Owner{Player: name, Team: doc.Name, Home: home}, cue.KindGoalhorn)
	}
	for event, node := range mappingPairs(&doc.Events) {
		owner := rules.Owner{Player: event, Team: doc.Name, Home: home}
		for _, raw := range l.entries(node) {
			if c := l.build(raw, owner, event, cue.KindEvent); c != nil {
				team.addEvent(event, c)
			}
		}
	}
	return team, nil
}

func (l *loader) loadRoster(team *Team, node *yaml.Node, roster string, owner rules.Owner, kind cue.Kind) {
	for _, raw := range l.entries(node) {
		if c := l.build(raw, owner, roster, kind); c != nil {
			team.add(roster, c)
		}
	}
}

// mappingPairs yields the key/value pairs of a mapping node in file order.
func mappingPairs(node *yaml.Node) func(yield func(string, *yaml.Node) bool) {
	return func(yield func(string, *yaml.Node) bool) {
		if node.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i].Value, node.Content[i+1]) {
				return
			}
		}
	}
}

// entryDoc is the mapping form of one cue.
type entryDoc struct {
	Filename     string      `yaml:"filename"`
	Conditions   []yaml.Node `yaml:"conditions"`
	Instructions []yaml.Node `yaml:"instructions"`
}

// entries reads a roster value: one entry or a list of entries, each a bare
// file name or an entryDoc.
func (l *loader) entries(node *yaml.Node) []rawCue {
	var items []*yaml.Node
	switch {
	case node.Kind == 0, node.ShortTag() == "!!null":
		return nil
	case node.Kind == yaml.SequenceNode:
		items = node.Content
	default:
		items = []*yaml.Node{node}
	}

	out := make([]rawCue, 0, len(items))
	for _, item := range items {
		raw, err := readEntry(item)
		if err != nil {
			l.fail(item.Line, err)
			continue
		}
		out = append(out, raw)
	}
	return out
}

func readEntry(node *yaml.Node) (rawCue, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return rawCue{}, fmt.Errorf("empty cue entry")
		}
		return rawCue{file: node.Value, line: node.Line}, nil
	case yaml.MappingNode:
		var doc entryDoc
		if err := node.Decode(&doc); err != nil {
			return rawCue{}, fmt.Errorf("cue entry: %w", err)
		}
		if doc.Filename == "" {
			return rawCue{}, fmt.Errorf("cue entry: missing filename")
		}
		raw := rawCue{file: doc.Filename, line: node.Line}
		for _, list := range [][]yaml.Node{doc.Conditions, doc.Instructions} {
			for i := range list {
				tokens, err := ruleTokens(&list[i])
				if err != nil {
					return rawCue{}, err
				}
				raw.rules = append(raw.rules, rawRule{tokens: tokens, line: list[i].Line})
			}
		}
		return raw, nil
	}
	return rawCue{}, fmt.Errorf("cue entry must be a file name or a mapping")
}

// ruleTokens flattens {type: value} into rule tokens. The value is null, a
// scalar, a list of scalars, or nested rule records for not, or, and, if.
// A plain string is read as a rule line.
func ruleTokens(node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode && node.Value != "" {
		return rules.Tokenize(node.Value)
	}
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: rule must be a single {type: value} entry", node.Line)
	}
	tokens := []string{node.Content[0].Value}
	args, err := valueTokens(node.Content[1])
	if err != nil {
		return nil, err
	}
	return append(tokens, args...), nil
}

func valueTokens(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			return nil, nil
		}
		return []string{node.Value}, nil
	case yaml.MappingNode:
		return ruleTokens(node)
	case yaml.SequenceNode:
		var out []string
		for i, item := range node.Content {
			if item.Kind == yaml.MappingNode {
				sub, err := ruleTokens(item)
				if err != nil {
					return nil, err
				}
				if i > 0 {
					out = append(out, rules.SubSeparator)
				}
				out = append(out, sub...)
				continue
			}
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: rule arguments must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: unsupported rule value", node.Line)
}
