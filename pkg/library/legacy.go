package library

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"rigdiogo/pkg/rules"
)

// loadLegacy reads the .4ccm line format: the first line is the team name,
// every further line is "roster;file;rule;rule...". Conditions and
// instructions may be mixed in any order.
func (l *loader) loadLegacy(home bool) (*Team, error) {
	f, err := os.Open(l.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}
	defer f.Close()

	var team *Team
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if team == nil {
			team = newTeam(line, l.file, home)
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
			l.fail(lineNo, fmt.Errorf("want roster;file[;rule...], got %q", line))
			continue
		}
		roster := legacyRoster(strings.TrimSpace(fields[0]))
		raw := rawCue{file: strings.TrimSpace(fields[1]), line: lineNo}
		for _, text := range fields[2:] {
			if strings.TrimSpace(text) == "" {
				continue
			}
			raw.rules = append(raw.rules, rawRule{text: text, line: lineNo})
		}
		owner := rules.Owner{Player: roster, Team: team.Name, Home: home}
		if c := l.build(raw, owner, roster, kindFor(roster)); c != nil {
			team.add(roster, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}
	if team == nil {
		return nil, fmt.Errorf("team file %s: missing name", l.file)
	}
	return team, nil
}

// legacyRoster maps the display names older editors wrote to roster names.
func legacyRoster(name string) string {
	switch name {
	case "Anthem":
		return RosterAnthem
	case "Goalhorn":
		return RosterGoal
	case "Victory Anthem":
		return RosterVictory
	case "Chant", "Chants":
		return RosterChant
	}
	return name
}
