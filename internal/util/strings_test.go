package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short output unchanged",
			input:    "uid=0(root)",
			maxLen:   20,
			expected: "uid=0(root)",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long output truncated",
			input:    "  512 root  rayhunter-daemon",
			maxLen:   10,
			expected: "  512 r...",
		},
		{
			name:     "tiny maxLen returns ellipsis",
			input:    "hello",
			maxLen:   3,
			expected: "...",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "multibyte runes counted as runes",
			input:    "日本語テスト",
			maxLen:   5,
			expected: "日本...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen)
			if got != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	t.Run("plain string truncated to width", func(t *testing.T) {
		got := TruncateANSI("installation failed: device offline", 10)
		if lipgloss.Width(got) > 10 {
			t.Errorf("width = %d, want <= 10", lipgloss.Width(got))
		}
	})

	t.Run("styled string keeps styling when short", func(t *testing.T) {
		in := style.Render("ok")
		if got := TruncateANSI(in, 20); got != in {
			t.Errorf("short styled string was modified: %q", got)
		}
	})

	t.Run("styled string truncated respects visual width", func(t *testing.T) {
		got := TruncateANSI(style.Render("installation failed on device"), 12)
		if lipgloss.Width(got) > 12 {
			t.Errorf("width = %d, want <= 12", lipgloss.Width(got))
		}
	})

	t.Run("wide characters counted by columns", func(t *testing.T) {
		got := TruncateANSI("日本語テスト", 8)
		if lipgloss.Width(got) > 8 {
			t.Errorf("width = %d, want <= 8", lipgloss.Width(got))
		}
	})
}
