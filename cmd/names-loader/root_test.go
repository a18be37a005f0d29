package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/heartmarshall/names-loader/internal/app/loader"
	"github.com/heartmarshall/names-loader/internal/config"
)

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tt.input), &out, "firstnames")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), `"firstnames"`) {
				t.Errorf("prompt does not name the table: %q", out.String())
			}
		})
	}
}

func TestDestructive(t *testing.T) {
	t.Parallel()

	rebuild := &config.Config{Loader: config.LoaderConfig{Rebuild: "rebuild"}}
	appendOnly := &config.Config{Loader: config.LoaderConfig{Rebuild: "append"}}

	if !destructive(rebuild, loader.DatasetFirstnames) {
		t.Error("rebuild of firstnames should be destructive")
	}
	if destructive(appendOnly, loader.DatasetFirstnames) {
		t.Error("append to firstnames should not be destructive")
	}
	if !destructive(appendOnly, loader.DatasetSurnames) {
		t.Error("surnames always drops its table")
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Error("version printed nothing")
	}
}
