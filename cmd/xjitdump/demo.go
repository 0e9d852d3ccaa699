package main

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/isa/arm64"
	"github.com/insinfo/asmjit-sub003/unicompiler"
)

// verbNames lists every verb demo.go knows how to build, in the order
// newVerbsCmd prints them.
var verbNames = []string{"addU32", "cmpEqU8", "broadcastU64", "cvtTruncF32ToI32", "load64F64", "mAddF32"}

// buildDemo constructs a single one-function compilation unit exercising
// verb at the given vector width, returning the UniCompiler positioned
// after EndFunc — ready for Finalize/WriteBack/encode.
func buildDemo(verb string, arch unicompiler.Arch, width asm.RegWidth) (*unicompiler.UniCompiler, error) {
	var cfg unicompiler.Config
	if arch == unicompiler.ArchARM64 {
		cfg = unicompiler.DefaultARM64Config()
	} else {
		cfg = unicompiler.DefaultAMD64Config()
	}
	u := unicompiler.New(cfg)

	if err := u.AddFunc(ir.FuncSignature{Name: "demo_" + verb, ArgVec: 2, RetVec: 1}); err != nil {
		return nil, err
	}

	dst := u.NewVecWithWidth(width, "dst").Register()
	a := u.NewVecWithWidth(width, "a").Register()
	b := u.NewVecWithWidth(width, "b").Register()

	var err error
	switch verb {
	case "addU32":
		err = u.AddU32(dst, a, b, width)
	case "cmpEqU8":
		err = u.CmpEqU8(dst, a, b, width)
	case "broadcastU64":
		err = u.BroadcastU64(dst, a, width)
	case "cvtTruncF32ToI32":
		gpDst := u.NewGP32("gpdst").Register()
		err = u.CvtTruncF32ToI32(gpDst, a)
	case "load64F64":
		base := u.NewGP64("base").Register()
		err = u.Load64F64(dst, asm.NewMemory(base, 0))
	case "mAddF32":
		c := u.NewVecWithWidth(width, "c").Register()
		err = u.MAddF32(dst, a, b, c, width)
	default:
		return nil, fmt.Errorf("unknown verb %q (choose one of %v)", verb, verbNames)
	}
	if err != nil {
		return nil, err
	}

	appendReturn(u, arch)

	if err := u.EndFunc(); err != nil {
		return nil, err
	}
	return u, nil
}

// appendReturn appends a bare return instruction at the cursor's current
// tail position. unicompiler exposes no verb for this (§4.5's verb set is
// vector/scalar compute only), so demo.go reaches past the façade to the
// Builder it already exposes for exactly this kind of tooling use.
func appendReturn(u *unicompiler.UniCompiler, arch unicompiler.Arch) {
	c := u.Builder().NewCursor()
	if arch == unicompiler.ArchARM64 {
		arm64.Ret(&c)
		return
	}
	c.AppendInst(amd64.RET, nil)
}
