package scratch

import (
	"testing"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

func TestData_GetSetDelete(t *testing.T) {
	var d Data
	counter := NewKey[int]("counter")
	label := NewKey[string]("label")

	if _, ok := Get(&d, counter); ok {
		t.Fatal("expected unset key")
	}
	Set(&d, counter, 3)
	Set(&d, label, "x")

	got, ok := Get(&d, counter)
	testboil.FailTestIfDiff(t, ok, true)
	testboil.FailTestIfDiff(t, got, 3)
	testboil.FailTestIfDiff(t, len(d.Keys()), 2)

	Delete(&d, counter)
	if _, ok := Get(&d, counter); ok {
		t.Fatal("expected deleted key")
	}
}

func TestData_TypeMismatchIsNotFound(t *testing.T) {
	var d Data
	Set(&d, NewKey[string]("shared"), "text")
	if _, ok := Get(&d, NewKey[int]("shared")); ok {
		t.Fatal("expected mismatching type to report not found")
	}
}
