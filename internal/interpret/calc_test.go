package interpret

import (
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"10 - 2 * 3", 4},
		{"(10 - 2) * 3", 24},
		{"7 / 2", 3.5},
		{"-5 + 3", -2},
		{"120,50 + 33", 153.5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	exprs := []string{
		"",
		"os.Exit(1)",
		"x + 1",
		"1 << 4",
		"len(\"a\")",
		"10 / 0",
		"2 ** 3",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			if _, err := Evaluate(expr); err == nil {
				t.Errorf("Evaluate(%q) succeeded, want error", expr)
			}
		})
	}
}
