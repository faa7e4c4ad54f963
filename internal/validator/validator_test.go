package validator

import (
	"strings"
	"testing"
)

const original = "Recursion is a technique where a function calls itself to solve smaller " +
	"instances of the same problem. Every recursive function needs a base case " +
	"that stops the descent, and a recursive step that makes progress toward it."

func TestCheck_AcceptsEdit(t *testing.T) {
	revised := strings.Replace(original, "a technique", "a programming technique", 1)

	if err := Check(original, revised, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheck_RejectsEmpty(t *testing.T) {
	if err := Check(original, "", nil); err == nil {
		t.Error("expected error for empty revision")
	}
	if err := Check(original, "   \n", nil); err == nil {
		t.Error("expected error for whitespace-only revision")
	}
}

func TestCheck_RejectsGuttedRevision(t *testing.T) {
	if err := Check(original, "Recursion: function calls itself.", nil); err == nil {
		t.Error("expected error for a heavily truncated revision")
	}
}

func TestCheck_ShortOriginalMayShrink(t *testing.T) {
	// Below the length-check threshold, shrinking is legitimate.
	if err := Check("A short draft sentence.", "Short.", nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheck_PreservedElements(t *testing.T) {
	preserved := []string{"audience: beginners", "Euler's formula"}

	keeps := original + " This explanation targets beginners and mentions Euler's formula."
	if err := Check(original, keeps, preserved); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	drops := original + " This explanation targets beginners."
	if err := Check(original, drops, preserved); err == nil {
		t.Error("expected error when a preserved element is dropped")
	}
}

func TestCheck_PreservedMatchIsCaseInsensitive(t *testing.T) {
	preserved := []string{"entity: Ada Lovelace"}
	revised := original + " As ADA LOVELACE observed, machines follow instructions."

	if err := Check(original, revised, preserved); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheck_KeyValueMatchesOnValue(t *testing.T) {
	// The key part of "key: value" need not appear verbatim.
	preserved := []string{"objective: explain recursion"}
	revised := original + " The goal remains to explain recursion simply."

	if err := Check(original, revised, preserved); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
