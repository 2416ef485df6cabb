package appmgr

import (
	"errors"
	"testing"
)

func TestAppInfo_Snapshot(t *testing.T) {
	m, _, _ := newTestManager(t)
	slot, err := m.AppCreate("/x.so", "Main", "APPX", 100, 16384, ExceptionProcRestart)
	if err != nil {
		t.Fatal(err)
	}
	info, err := m.AppInfo(slot)
	if err != nil {
		t.Fatal(err)
	}
	if info.Slot != slot || info.Name != "APPX" || info.Type != AppTypeExternal {
		t.Fatalf("info = %+v", info)
	}
	if info.EntryPointName != "Main" || info.FileName != "/x.so" {
		t.Fatalf("start params = %+v", info)
	}
	if info.StackSize != 16384 || info.Priority != 100 || info.ExceptionAction != ExceptionProcRestart {
		t.Fatalf("start params = %+v", info)
	}
	if info.MainTaskName != "APPX" || info.MainTaskHandle == 0 {
		t.Fatalf("task info = %+v", info)
	}
	if !info.Module.Valid || info.Module.CodeSize == 0 {
		t.Fatalf("module info = %+v", info.Module)
	}
}

func TestAppInfo_Errors(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.AppInfo(-1); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	if _, err := m.AppInfo(len(m.apps)); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	if _, err := m.AppInfo(0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLibIDByName(t *testing.T) {
	m, _, _ := newTestManager(t)
	slot, _, err := m.LoadLibrary("/lib.so", "NULL", "MYLIB")
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.LibIDByName("MYLIB")
	if err != nil || got != slot {
		t.Fatalf("slot=%d err=%v", got, err)
	}
	if _, err := m.LibIDByName("NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
