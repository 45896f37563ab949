package engine

import (
	"errors"
	"testing"
)

func TestStatusMessages(t *testing.T) {
	tests := []struct {
		code Status
		want string
	}{
		{MapFull, "environment mapsize limit reached"},
		{UnableExtendMapSize, "unable to extend the map size"},
		{TablesFull, "environment maxdbs limit reached"},
		{BadReaderSlot, "reader slot was corrupted or reused"},
		{MultiValue, "key has multiple associated values"},
		{Status(-1), "unknown status -1"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("status %d: got %q, want %q", int(tt.code), got, tt.want)
		}
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != Success {
		t.Error("nil error is not Success")
	}
	wrapped := WrapError(UnableExtendMapSize, errors.New("set geometry"))
	if Code(wrapped) != UnableExtendMapSize || !errors.Is(wrapped, wrapped.Err) {
		t.Errorf("wrapped error: %#v", wrapped)
	}
	if Code(errors.New("plain")) != Problem {
		t.Error("foreign error is not Problem")
	}
	if !IsMapFull(NewError(MapFull)) || IsNotFound(NewError(MapFull)) {
		t.Error("MapFull classification")
	}
}
