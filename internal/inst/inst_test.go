package inst

import (
	"testing"

	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/operand"
)

func TestExecuteInvokesSemantic(t *testing.T) {
	s := archstate.New(archstate.Config{MaxPhys: 4096, ResetVector: 0x8000_0000})
	called := false
	i := New(0x8000_0000, 4, "nop", "nop", func(s *archstate.ArchState, i *Instruction) {
		called = true
	}, nil, nil)
	i.Execute(s)
	if !called {
		t.Error("expected semantic to run")
	}
}

func TestCloneReleaseRefCount(t *testing.T) {
	i := New(0, 4, "nop", "nop", nil, nil, nil)
	if i.RefCount() != 0 {
		t.Fatalf("new instruction should start at refcount 0, got %d", i.RefCount())
	}
	clone := i.Clone()
	if clone != i {
		t.Error("Clone should return the same instruction, not a copy")
	}
	if i.RefCount() != 1 {
		t.Errorf("refcount got %d want 1", i.RefCount())
	}
	i.Release()
	if i.RefCount() != 0 {
		t.Errorf("refcount got %d want 0 after release", i.RefCount())
	}
}

func TestChildIsOneWay(t *testing.T) {
	parent := New(0, 4, "auipcc", "auipcc", nil, nil, nil)
	child := New(4, 4, "jalr", "jalr", nil, nil, nil)
	parent.Child = child
	if child.Child != nil {
		t.Error("child must not point back at its parent")
	}
}

func TestSourcesDestinationsCarried(t *testing.T) {
	src := []operand.Operand{{Kind: operand.KindRs1, Reg: 1}}
	dst := []operand.Operand{{Kind: operand.KindRd, Reg: 2}}
	i := New(0, 4, "add", "add x2, x1, x1", nil, src, dst)
	if len(i.Sources) != 1 || len(i.Destinations) != 1 {
		t.Error("expected sources and destinations to be carried verbatim")
	}
}
