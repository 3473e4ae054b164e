// Package testutil holds fakes and assertion helpers shared by the package
// tests.
package testutil

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tiroq/dictaphone/internal/asr"
)

// AssertEqual fails unless expected and actual are deeply equal.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNotEqual fails if expected and actual are deeply equal.
func AssertNotEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if reflect.DeepEqual(expected, actual) {
		t.Fatalf("%s: expected values to differ, both are %v", msg, expected)
	}
}

// AssertTrue fails unless condition holds.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Fatalf("%s: expected true, got false", msg)
	}
}

// AssertFalse fails if condition holds.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Fatalf("%s: expected false, got true", msg)
	}
}

// AssertNotNil fails on a nil value, including a typed nil pointer.
func AssertNotNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value == nil {
		t.Fatalf("%s: expected non-nil value", msg)
	}
	if v := reflect.ValueOf(value); v.Kind() == reflect.Ptr && v.IsNil() {
		t.Fatalf("%s: expected non-nil value, got nil %T", msg, value)
	}
}

// AssertNoError fails on a non-nil error.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertErrorIs fails unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error, msg string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: expected error wrapping %q, got %v", msg, target, err)
	}
}

// AssertErrorContains fails unless err is non-nil and mentions substr.
func AssertErrorContains(t *testing.T, err error, substr string, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error but got nil", msg)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("%s: error %q does not contain %q", msg, err.Error(), substr)
	}
}

// AssertStringContains fails unless str contains substr.
func AssertStringContains(t *testing.T, str, substr string, msg string) {
	t.Helper()
	if !strings.Contains(str, substr) {
		t.Fatalf("%s: string %q does not contain %q", msg, str, substr)
	}
}

// AssertStringNotContains fails if str contains substr.
func AssertStringNotContains(t *testing.T, str, substr string, msg string) {
	t.Helper()
	if strings.Contains(str, substr) {
		t.Fatalf("%s: string %q should not contain %q", msg, str, substr)
	}
}

// AssertJSONContainsKey fails unless jsonStr is an object with key.
func AssertJSONContainsKey(t *testing.T, jsonStr, key string, msg string) {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("%s: invalid JSON: %v", msg, err)
	}
	if _, ok := result[key]; !ok {
		t.Fatalf("%s: JSON does not contain key %q", msg, key)
	}
}

// AssertSegments compares segment lists and prints both in line format on
// mismatch.
func AssertSegments(t *testing.T, want, got []asr.Segment, msg string) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("%s:\nwant:\n%s\ngot:\n%s", msg, formatSegments(want), formatSegments(got))
	}
}

func formatSegments(segments []asr.Segment) string {
	if len(segments) == 0 {
		return "  (none)"
	}
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = "  " + s.String()
	}
	return strings.Join(lines, "\n")
}

// WaitForCondition polls condition every 10ms until it holds or timeout.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s: condition not met within %v", msg, timeout)
}
