package protocol

import (
	"bytes"
	"testing"

	"go.uber.org/zap"
)

func TestDispatchRoutesByOpcodeAndState(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	var got []byte
	reg.Register(OpIntent, []SessionState{StateInWorld}, func(_ any, body []byte) {
		got = append([]byte(nil), body...)
	})

	frame := append([]byte{OpIntent}, 0xAA, 0xBB)
	if err := reg.Dispatch(nil, StateInWorld, frame); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Fatalf("expected handler to receive the body, got %v", got)
	}
}

func TestDispatchRejectsWrongState(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	called := false
	reg.Register(OpIntent, []SessionState{StateInWorld}, func(any, []byte) {
		called = true
	})

	err := reg.Dispatch(nil, StateHandshake, []byte{OpIntent})
	if err == nil {
		t.Fatal("expected a state rejection error")
	}
	if called {
		t.Fatal("expected the handler not to run in a disallowed state")
	}
}

func TestDispatchIgnoresUnknownOpcode(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if err := reg.Dispatch(nil, StateInWorld, []byte{0x7F, 0x01}); err != nil {
		t.Fatalf("expected unknown opcodes to be ignored, got %v", err)
	}
}

func TestDispatchRejectsEmptyFrame(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	if err := reg.Dispatch(nil, StateInWorld, nil); err == nil {
		t.Fatal("expected an error for an empty frame")
	}
}

func TestRegisterDuplicateOpcodePanics(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(OpPing, []SessionState{StateInWorld}, func(any, []byte) {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	reg.Register(OpPing, []SessionState{StateInWorld}, func(any, []byte) {})
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(OpChat, []SessionState{StateInWorld}, func(any, []byte) {
		panic("bad message")
	})

	err := reg.Dispatch(nil, StateInWorld, []byte{OpChat})
	if err == nil {
		t.Fatal("expected the recovered panic to surface as an error")
	}
}

func TestEncodePrependsOpcode(t *testing.T) {
	frame, err := Encode(OpOwnState, OwnState{Tick: 42, X: 1000, Z: -1000})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frame[0] != OpOwnState {
		t.Fatalf("expected opcode prefix %d, got %d", OpOwnState, frame[0])
	}

	var st OwnState
	if err := Unmarshal(frame[1:], &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Tick != 42 || st.X != 1000 || st.Z != -1000 {
		t.Fatalf("expected decoded state to match, got %+v", st)
	}
}
