// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nativeptrace

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// elfFunc is a function's [low, high) PC range and name, taken from
// the ELF symbol table.
type elfFunc struct {
	name         string
	low, high    execctl.Addr
}

func (f elfFunc) Name() string { return f.name }

// ELFSymbolResolver is the reference execctl.SymbolResolver: it reads
// function bounds from the ELF symbol table and line numbers from
// .debug_line via the standard library's DWARF reader. It deliberately
// does not depend on a third-party DWARF/ELF library: none of the
// example repos pull one in, and debug/elf + debug/dwarf are what the
// standard Go toolchain itself is built on for this exact job.
type ELFSymbolResolver struct {
	funcs []elfFunc
	dw    *dwarf.Data
}

// NewELFSymbolResolver parses path's ELF symbol table and DWARF debug
// info (if present).
func NewELFSymbolResolver(path string) (*ELFSymbolResolver, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		// A stripped binary has no symbol table; that is not fatal, it
		// just means FunctionForAddress always misses.
		syms = nil
	}

	r := &ELFSymbolResolver{}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 {
			continue
		}
		r.funcs = append(r.funcs, elfFunc{
			name: s.Name,
			low:  execctl.Addr(s.Value),
			high: execctl.Addr(s.Value + s.Size),
		})
	}
	sort.Slice(r.funcs, func(i, j int) bool { return r.funcs[i].low < r.funcs[j].low })

	if dw, err := f.DWARF(); err == nil {
		r.dw = dw
	}
	return r, nil
}

func (r *ELFSymbolResolver) FunctionForAddress(addr execctl.Addr) (execctl.Function, execctl.Addr, execctl.Addr, bool) {
	i := sort.Search(len(r.funcs), func(i int) bool { return r.funcs[i].low > addr })
	if i == 0 {
		return nil, 0, 0, false
	}
	f := r.funcs[i-1]
	if addr < f.low || addr >= f.high {
		return nil, 0, 0, false
	}
	return f, f.low, f.high, true
}

func (r *ELFSymbolResolver) LineForAddress(addr execctl.Addr) (string, int, bool) {
	if r.dw == nil {
		return "", 0, false
	}
	reader := r.dw.Reader()
	for {
		entry, err := reader.Next()
		if err != nil || entry == nil {
			return "", 0, false
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := r.dw.LineReader(entry)
		if err != nil {
			continue
		}
		var le dwarf.LineEntry
		var best dwarf.LineEntry
		found := false
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			if le.Address > uint64(addr) {
				break
			}
			best = le
			found = true
		}
		if found {
			return best.File.Name, best.Line, true
		}
	}
}

// ReturnTypeOf is unimplemented in the reference resolver: computing a
// DWARF function's return type requires walking its subprogram DIE's
// children, which call-expression evaluation (the only consumer) does
// not yet exercise in this backend.
func (r *ELFSymbolResolver) ReturnTypeOf(fn execctl.Function) (string, bool) {
	return "", false
}

var _ execctl.SymbolResolver = (*ELFSymbolResolver)(nil)
