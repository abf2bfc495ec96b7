package sanitize

import (
	"strings"
	"testing"
)

func TestProblemName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "passthrough valid name",
			input: "reference-3x3",
			want:  "reference-3x3",
		},
		{
			name:  "keeps dots and slashes",
			input: "heat/grid.v2",
			want:  "heat/grid.v2",
		},
		{
			name:  "spaces become hyphens",
			input: "my test system",
			want:  "my-test-system",
		},
		{
			name:  "strip special characters",
			input: "sys<script>alert(1)</script>",
			want:  "sysscriptalert1/script",
		},
		{
			name:  "strip control characters",
			input: "sys\x00tem\x1b[31m",
			want:  "system31m",
		},
		{
			name:  "collapse repeated hyphens",
			input: "a - - b",
			want:  "a-b",
		},
		{
			name:  "collapse repeated underscores",
			input: "a___b",
			want:  "a_b",
		},
		{
			name:  "trim separators",
			input: "  -inline_ ",
			want:  "inline",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only special characters",
			input: "!@#$%^&*()",
			want:  "",
		},
		{
			name:  "unicode stripped",
			input: "système",
			want:  "systme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProblemName(tt.input)
			if got != tt.want {
				t.Errorf("ProblemName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProblemName_Truncation(t *testing.T) {
	got := ProblemName(strings.Repeat("a", 120))
	if len(got) != MaxNameLength {
		t.Errorf("len = %d, want %d", len(got), MaxNameLength)
	}

	got = ProblemName(strings.Repeat("a", MaxNameLength))
	if len(got) != MaxNameLength {
		t.Errorf("len at boundary = %d, want %d", len(got), MaxNameLength)
	}
}
