package verify

import "testing"

func TestExtractPIN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"my pin is 1234 ok", "1234"},
		{"1234 please", "1234"},
		{"1234", "1234"},
		{"pin 12 and 34", "12"},
		{"twelve", "twelve"},
		{"  twelve  ", "twelve"},
		{"", ""},
		{"ends with 987", "987"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractPIN(tt.input)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if again := ExtractPIN(got); again != got {
				t.Errorf("expected idempotent result, got %q then %q", got, again)
			}
		})
	}
}

func TestDemoPolicy_ResolveUsername(t *testing.T) {
	p := DemoPolicy()
	tests := []struct {
		input string
		ok    bool
	}{
		{"this is arvind", true},
		{"ARAVIND here", true},
		{"Arvind", true},
		{"random name", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, ok := p.ResolveUsername(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && name != "arvind" {
				t.Fatalf("expected canonical username, got %q", name)
			}
			if MatchesUsername(p, tt.input) != tt.ok {
				t.Fatalf("MatchesUsername disagrees with ResolveUsername")
			}
		})
	}
}

func TestDemoPolicy_MatchesPIN(t *testing.T) {
	p := DemoPolicy()
	if !p.MatchesPIN("arvind", "1234") {
		t.Fatalf("expected pin to match")
	}
	if p.MatchesPIN("arvind", "12345") {
		t.Fatalf("expected longer pin to fail")
	}
	if p.MatchesPIN("arvind", "") {
		t.Fatalf("expected empty pin to fail")
	}
	if p.MatchesPIN("someone", "1234") {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestStaticPolicy_SkipsBlankEnrollment(t *testing.T) {
	p := NewStaticPolicy(Enrollment{Username: " ", PIN: "1"}, Enrollment{Username: "Meena", PIN: "4321"})
	if name, ok := p.ResolveUsername("hello meena"); !ok || name != "meena" {
		t.Fatalf("expected meena, got %q %v", name, ok)
	}
	if !p.MatchesPIN("MEENA", "4321") {
		t.Fatalf("expected case-insensitive username on pin check")
	}
}
