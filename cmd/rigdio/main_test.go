package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rigdiogo/pkg/audio/mockaudio"
	"rigdiogo/pkg/library"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"anthem.mp3", "goal.mp3", "himno.mp3"} {
		writeFile(t, filepath.Join(dir, f), "")
	}
	writeFile(t, filepath.Join(dir, "canada.yml"), "name: Canada\nanthem: anthem.mp3\ngoal: goal.mp3\n")
	writeFile(t, filepath.Join(dir, "mexico.4ccm"), "Mexico\nAnthem;himno.mp3\nLuis;missing.mp3\n")

	cfgPath := filepath.Join(dir, "rigdio.yaml")
	writeFile(t, cfgPath, `
server:
    address: localhost:0
log:
    enabled: false
    server:
        level: debug
    title:
        enabled: true
        path: `+filepath.Join(dir, "title.txt")+`
audio:
    provider: mock
library:
    dir: `+dir+`
match:
    home: canada.yml
    away: mexico.4ccm
    type: Group
metrics:
    enabled: true
`)

	// Cancel quickly to verify the startup sequence.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

func TestRun_MissingTeam(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rigdio.yaml")
	writeFile(t, cfgPath, "log:\n    enabled: false\naudio:\n    provider: mock\nmatch:\n    home: "+filepath.Join(dir, "nope.yml")+"\n")

	err := run(context.Background(), cfgPath)
	if err == nil || !strings.Contains(err.Error(), "home team") {
		t.Fatalf("run() error = %v, want home team failure", err)
	}
}

func TestConvertTeam(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "canada.4ccm")
	writeFile(t, in, "Canada\nAnthem;anthem.mp3\nAlice;alice.mp3;goals >= 2\n")
	out := filepath.Join(dir, "canada.yml")

	if err := convertTeam(in, out); err != nil {
		t.Fatalf("convertTeam() failed: %v", err)
	}
	team, report, err := library.Load(out, true, mockaudio.New(), library.Options{})
	if err != nil {
		t.Fatalf("reload converted team: %v", err)
	}
	if !report.OK() {
		t.Fatalf("converted team has problems: %s", report.Error())
	}
	alice := team.Players["Alice"]
	if team.Name != "Canada" || len(team.Anthem) != 1 || len(alice) != 1 {
		t.Fatalf("converted team = %+v", team)
	}
	if got := alice[0].Rules()[0].String(); got != "goals >= 2" {
		t.Errorf("Alice rule = %q, want %q", got, "goals >= 2")
	}

	if err := convertTeam("", out); err == nil {
		t.Error("convertTeam() without input should fail")
	}
}
