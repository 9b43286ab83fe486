package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error is ok",
			err:      nil,
			expected: ExitOK,
		},
		{
			name:     "plain error is fatal",
			err:      errors.New("boom"),
			expected: ExitFatal,
		},
		{
			name:     "explicit host failure code",
			err:      NewExitError(ExitHostFailed, nil),
			expected: ExitHostFailed,
		},
		{
			name:     "explicit unreachable code",
			err:      NewExitError(ExitUnreachable, errors.New("web1 unreachable")),
			expected: ExitUnreachable,
		},
		{
			name:     "wrapped exit error survives the chain",
			err:      fmt.Errorf("run failed: %w", NewExitError(ExitHostFailed, nil)),
			expected: ExitHostFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.expected {
				t.Errorf("ExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	e := NewExitError(ExitHostFailed, nil)
	if e.Error() != "exit status 2" {
		t.Errorf("unexpected message: %q", e.Error())
	}

	e = NewExitError(ExitFatal, errors.New("load failed"))
	if e.Error() != "load failed" {
		t.Errorf("unexpected message: %q", e.Error())
	}
}

func TestPlaybookError(t *testing.T) {
	base := errors.New("yaml: line 3: mapping values are not allowed")
	err := WrapPlaybookError("site.yml", base)

	if !strings.Contains(err.Error(), "site.yml") {
		t.Errorf("expected playbook path in message, got %q", err.Error())
	}

	if !errors.Is(err, base) {
		t.Error("expected wrapped error to match with errors.Is")
	}

	if WrapPlaybookError("site.yml", nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("site.yml", "play is missing 'hosts'")

	if !strings.Contains(err.Error(), "site.yml") {
		t.Errorf("expected subject in message, got %q", err.Error())
	}

	if !IsValidation(err) {
		t.Error("IsValidation should match")
	}

	if IsValidation(errors.New("other")) {
		t.Error("IsValidation should not match a plain error")
	}
}

func TestMultiError(t *testing.T) {
	m := &MultiError{}
	if m.ErrorOrNil() != nil {
		t.Error("empty multi-error should be nil")
	}

	m.Add(nil)
	if m.ErrorOrNil() != nil {
		t.Error("adding nil should not count")
	}

	m.Add(errors.New("first"))
	m.Add(errors.New("second"))

	err := m.ErrorOrNil()
	if err == nil {
		t.Fatal("expected non-nil error")
	}

	if !strings.Contains(err.Error(), "2 errors occurred") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestSentinelChecks(t *testing.T) {
	if !IsUsage(fmt.Errorf("run: %w", ErrUsage)) {
		t.Error("IsUsage should match wrapped ErrUsage")
	}

	if !IsCancelled(fmt.Errorf("interrupted: %w", ErrCancelled)) {
		t.Error("IsCancelled should match wrapped ErrCancelled")
	}

	if !IsConnectionError(fmt.Errorf("dial tcp: %w", ErrConnectionFailed)) {
		t.Error("IsConnectionError should match wrapped ErrConnectionFailed")
	}

	if IsUsage(ErrCancelled) {
		t.Error("IsUsage should not match ErrCancelled")
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "invalid limit",
			err:      fmt.Errorf("inventory: %w", ErrInvalidLimit),
			contains: "--limit",
		},
		{
			name:     "cancelled",
			err:      ErrCancelled,
			contains: "cancelled",
		},
		{
			name:     "connection",
			err:      ErrConnectionFailed,
			contains: "connect",
		},
		{
			name:     "unknown errors pass through",
			err:      errors.New("something odd"),
			contains: "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FriendlyError(tt.err)
			if !strings.Contains(msg, tt.contains) {
				t.Errorf("FriendlyError() = %q, want substring %q", msg, tt.contains)
			}
		})
	}

	if FriendlyError(nil) != "" {
		t.Error("nil error should produce empty message")
	}
}
