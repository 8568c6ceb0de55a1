// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package expr

import (
	"strings"
	"testing"
)

func TestParseTemplateLiteral(t *testing.T) {
	t.Parallel()

	template, err := ParseTemplate("plain text, no expressions")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	if !template.IsLiteral() {
		t.Error("IsLiteral() = false, want true")
	}
	got, err := template.Render(nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "plain text, no expressions" {
		t.Errorf("Render() = %q, want source unchanged", got)
	}
}

func TestTemplateRender(t *testing.T) {
	t.Parallel()

	scope := testScope()
	for _, testCase := range []struct {
		name   string
		source string
		want   string
	}{
		{"single expression", "${{ github.ref_name }}", "v4.3.3"},
		{"text around expression", "release ${{ github.ref_name }} built", "release v4.3.3 built"},
		{"two expressions", "${{ github.event_name }}/${{ github.run_number }}", "push/17"},
		{"number renders as source-free decimal", "v${{ 4.1 }}", "v4.1"},
		{"null renders empty", "x${{ github.missing }}y", "xy"},
		{"no expressions", "v*", "v*"},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			template, err := ParseTemplate(testCase.source)
			if err != nil {
				t.Fatalf("ParseTemplate(%q): %v", testCase.source, err)
			}
			got, err := template.Render(scope)
			if err != nil {
				t.Fatalf("Render(%q): %v", testCase.source, err)
			}
			if got != testCase.want {
				t.Errorf("Render(%q) = %q, want %q", testCase.source, got, testCase.want)
			}
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	t.Parallel()

	if _, err := ParseTemplate("broken ${{ github.ref"); err == nil || !strings.Contains(err.Error(), "unterminated") {
		t.Errorf("unterminated template error = %v, want unterminated", err)
	}
	if _, err := ParseTemplate("${{ 1 + 2 }}"); err == nil || !strings.Contains(err.Error(), "unexpected character") {
		t.Errorf("bad embedded expression error = %v, want parse failure", err)
	}
}

func TestTemplateSingle(t *testing.T) {
	t.Parallel()

	template, err := ParseTemplate("${{ secrets.DOCKER_TOKEN }}")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	single, ok := template.Single()
	if !ok {
		t.Fatal("Single() = false, want a lone expression")
	}
	path, ok := single.PropertyPath()
	if !ok || len(path) != 2 || path[0] != "secrets" || path[1] != "DOCKER_TOKEN" {
		t.Errorf("PropertyPath() = %v %v, want [secrets DOCKER_TOKEN] true", path, ok)
	}

	mixed, err := ParseTemplate("prefix ${{ secrets.X }}")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	if _, ok := mixed.Single(); ok {
		t.Error("Single() on mixed template = true, want false")
	}
}

func TestParseGate(t *testing.T) {
	t.Parallel()

	for _, testCase := range []struct {
		name   string
		source string
		want   bool
	}{
		{"bare condition", "github.event_name != 'pull_request'", true},
		{"wrapped condition", "${{ github.event_name != 'pull_request' }}", true},
		{"wrapped with whitespace", "  ${{ success() }}  ", true},
		{"false condition", "github.event_name == 'schedule'", false},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			gate, err := ParseGate(testCase.source)
			if err != nil {
				t.Fatalf("ParseGate(%q): %v", testCase.source, err)
			}
			got, err := gate.EvaluateBool(testScope())
			if err != nil {
				t.Fatalf("EvaluateBool: %v", err)
			}
			if got != testCase.want {
				t.Errorf("gate %q = %v, want %v", testCase.source, got, testCase.want)
			}
		})
	}

	if _, err := ParseGate("${{ success() }} extra"); err == nil {
		t.Error("ParseGate with trailing text succeeded, want error")
	}
}
