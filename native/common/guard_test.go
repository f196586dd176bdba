package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	paused := StaticPauseView{"rewards": true}
	if err := Guard(paused, "rewards"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(paused, "lending"); err != nil {
		t.Fatalf("unrelated module must pass, got %v", err)
	}
	if err := Guard(nil, "rewards"); err != nil {
		t.Fatalf("nil view must pass, got %v", err)
	}
	if err := Guard(paused, ""); err != nil {
		t.Fatalf("empty module must pass, got %v", err)
	}
}

func TestCompositePauseView(t *testing.T) {
	composite := CompositePauseView{
		nil,
		StaticPauseView{"lending": true},
		StaticPauseView{"rewards": true},
	}
	if !composite.IsPaused("rewards") {
		t.Fatal("any member pausing the module must pause the composite")
	}
	if !composite.IsPaused("lending") {
		t.Fatal("any member pausing the module must pause the composite")
	}
	if composite.IsPaused("swap") {
		t.Fatal("module paused by no member must stay unpaused")
	}
	if err := Guard(composite, "rewards"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if CompositePauseView(nil).IsPaused("rewards") {
		t.Fatal("empty composite must pause nothing")
	}
}
