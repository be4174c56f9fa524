package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}
}

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	originalStdout := versionCmd.OutOrStdout()
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(originalStdout)

	versionCmd.Run(versionCmd, []string{})

	output := buf.String()
	if output == "" {
		t.Fatal("version command produced no output")
	}

	if !strings.Contains(output, "recalld version") {
		t.Errorf("version output does not contain 'recalld version'. Output:\n%s", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("version output does not contain 'commit:'. Output:\n%s", output)
	}
	if !strings.Contains(output, "built:") {
		t.Errorf("version output does not contain 'built:'. Output:\n%s", output)
	}
}

func TestRootCommandRegistration(t *testing.T) {
	expected := []string{
		"serve", "sweep", "sync", "calendars", "migrate",
		"auth", "config", "completion", "version",
	}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("command %q not registered on root", name)
		}
	}
}

func TestConfigSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["show"] {
		t.Error("config show subcommand not registered")
	}
	if !names["init"] {
		t.Error("config init subcommand not registered")
	}
}
