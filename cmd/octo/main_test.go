package main

import "testing"

func TestBuildRootCmdRegistersFlags(t *testing.T) {
	cmd := buildRootCmd()

	required := []string{"config", "log-level", "metrics-addr"}
	for _, name := range required {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("expected persistent flag %q to be registered", name)
		}
	}

	spawnFlags := []string{"prompt", "team-name", "agent-name"}
	for _, name := range spawnFlags {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected flag %q to be registered", name)
		}
	}
}

func TestParseLogLevelFallsBackToInfo(t *testing.T) {
	if lvl := parseLogLevel("bogus"); lvl != parseLogLevel("info") {
		t.Errorf("parseLogLevel(bogus) = %v, want info fallback", lvl)
	}
}
