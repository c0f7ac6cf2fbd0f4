package parser

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"25.99", "25.99", false},
		{"1,234.56", "1234.56", false},
		{"1,234,567.89", "1234567.89", false},
		{"0.00", "0.00", false},
		{" 25.99 ", "25.99", false},
		{"12.", "12.00", false},
		{"7.5", "7.50", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.StringFixed(2) != tt.expected {
				t.Errorf("got %s, want %s", got.StringFixed(2), tt.expected)
			}
		})
	}
}

func TestDatePrefixPattern(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"15 Jan 24 DD SKY", "15 Jan 24"},
		{"  01 Sept 23 CR SALARY", "01 Sept 23"},
		{"31 DEC 23", "31 DEC 23"},
		{"15 Jan 2024 CARD PAYMENT", ""},
		{"1 Jan 24 PAYMENT", ""},
		{"VIS TESCO 15 Jan 24", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ""
			if m := datePrefixPattern.FindStringSubmatch(tt.input); m != nil {
				got = m[1]
			}
			if got != tt.expected {
				t.Errorf("date prefix of %q: got %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	toks := tokenize("  VIS  SHOP     12.00")
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(toks))
	}
	want := []token{{"  ", "VIS"}, {"  ", "SHOP"}, {"     ", "12.00"}}
	for i, w := range want {
		if toks[i] != w {
			t.Errorf("token %d: got %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestFindAccountNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Account Number 87654321", "87654321"},
		{"Sort Code 40-12-34   Account Number 12345678", "12345678"},
		{"no number here", ""},
		{"123456789", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := findAccountNumber(tt.input); got != tt.expected {
				t.Errorf("findAccountNumber(%q): got %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindSortCode(t *testing.T) {
	if got := findSortCode("Sort Code 40-12-34"); got != "40-12-34" {
		t.Errorf("got %q, want %q", got, "40-12-34")
	}
	if got := findSortCode("Sort Code 401234"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFindPeriod(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"12 December 2023 to 11 January 2024", "12 December 2023 to 11 January 2024"},
		{"Your statement   12 December to 11 January 2024", "12 December to 11 January 2024"},
		{"no period", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := findPeriod(tt.input); got != tt.expected {
				t.Errorf("findPeriod(%q): got %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindNameNearLabel(t *testing.T) {
	lines := []string{
		"HSBC UK Bank plc",
		"Account Name:",
		"Account Name: MR JOHN SMITH      40-12-34",
	}
	if got := findNameNearLabel(lines, []string{"Account Name"}); got != "MR JOHN SMITH" {
		t.Errorf("got %q, want %q", got, "MR JOHN SMITH")
	}
	if got := findNameNearLabel(lines, []string{"Account holder"}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
