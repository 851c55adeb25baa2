package sema

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
)

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// registerDecls walks the program (phase 1 of spec.md §9's two-phase
// approach), registering every named struct/union — including those
// nested inside another struct/union body — with a placeholder layout
// before any layout is actually computed. This lets mutually-referencing
// pointer-typed declarations ("struct A { B *b; }; struct B { A *a; };")
// resolve regardless of declaration order.
func (a *Analyzer) registerDecls(decls []ast.Decl) {
	for _, d := range decls {
		switch n := d.(type) {
		case *ast.StructDecl:
			if n.Name != "" {
				a.declsByName[n.Name] = n
				a.layouts[n.Name] = &StructLayout{Name: n.Name}
			}
			a.registerFieldDecls(n.Fields)
		case *ast.UnionDecl:
			if n.Name != "" {
				a.declsByName[n.Name] = n
				a.layouts[n.Name] = &StructLayout{Name: n.Name, IsUnion: true}
			}
			a.registerFieldDecls(n.Fields)
		}
	}
}

func (a *Analyzer) registerFieldDecls(fields []*ast.FieldDecl) {
	for _, f := range fields {
		switch nd := f.Nested.(type) {
		case *ast.StructDecl:
			if nd.Name != "" {
				a.declsByName[nd.Name] = nd
				a.layouts[nd.Name] = &StructLayout{Name: nd.Name}
			}
			a.registerFieldDecls(nd.Fields)
		case *ast.UnionDecl:
			if nd.Name != "" {
				a.declsByName[nd.Name] = nd
				a.layouts[nd.Name] = &StructLayout{Name: nd.Name, IsUnion: true}
			}
			a.registerFieldDecls(nd.Fields)
		}
	}
}

// resolveLayout computes (and memoizes) the layout for a registered
// struct/union name, detecting non-pointer circular containment.
func (a *Analyzer) resolveLayout(name string) (*StructLayout, error) {
	if l, ok := a.layouts[name]; ok && l.resolved {
		return l, nil
	}
	if a.visiting[name] {
		return nil, &Error{Kind: CircularType, Message: fmt.Sprintf("struct or union %q contains itself by value", name)}
	}
	decl, ok := a.declsByName[name]
	if !ok {
		return nil, fmt.Errorf("sema: internal: unregistered type %q", name)
	}

	a.visiting[name] = true
	layout, err := a.buildLayout(name, decl)
	delete(a.visiting, name)
	if err != nil {
		return nil, err
	}
	layout.resolved = true
	a.layouts[name] = layout
	return layout, nil
}

func (a *Analyzer) buildLayout(name string, decl ast.Decl) (*StructLayout, error) {
	var fields []*ast.FieldDecl
	isUnion := false
	switch n := decl.(type) {
	case *ast.StructDecl:
		fields = n.Fields
	case *ast.UnionDecl:
		fields = n.Fields
		isUnion = true
	}

	layout := &StructLayout{Name: name, IsUnion: isUnion}
	var offset uint32
	var maxAlign uint32 = 1
	var unionMaxSize uint32

	var bitUnitOffset uint32
	var bitUnitUsed uint8
	inBitUnit := false

	flushBitUnit := func() {
		if inBitUnit {
			offset = bitUnitOffset + 4
			inBitUnit = false
			bitUnitUsed = 0
		}
	}

	place := func(fieldAlign, size uint32) uint32 {
		if isUnion {
			if size > unionMaxSize {
				unionMaxSize = size
			}
			return 0
		}
		fo := alignUp(offset, fieldAlign)
		offset = fo + size
		return fo
	}

	for _, f := range fields {
		if f.Nested != nil {
			flushBitUnit()
			nestedName := ""
			switch nd := f.Nested.(type) {
			case *ast.StructDecl:
				nestedName = nd.Name
			case *ast.UnionDecl:
				nestedName = nd.Name
			}

			var nested *StructLayout
			var err error
			if nestedName != "" {
				nested, err = a.resolveLayout(nestedName)
			} else {
				nested, err = a.buildLayout("", f.Nested)
			}
			if err != nil {
				return nil, err
			}

			bias := place(nested.Align, nested.Size)
			for _, nf := range nested.Fields {
				promoted := nf
				promoted.ByteOffset += bias
				promoted.IsAnonymousGroup = true
				layout.Fields = append(layout.Fields, promoted)
			}
			if nested.Align > maxAlign {
				maxAlign = nested.Align
			}
			continue
		}

		typ, err := a.resolveTypeExpr(f.Type)
		if err != nil {
			return nil, err
		}

		if f.BitWidth != nil {
			width, ok := a.evalConstInt(f.BitWidth)
			if !ok {
				return nil, &Error{Kind: BadBitFieldWidth, Line: f.Pos().Line, Column: f.Pos().Column,
					Message: "bit-field width must be a compile-time constant"}
			}
			if width < 1 || width > 32 {
				return nil, &Error{Kind: BadBitFieldWidth, Line: f.Pos().Line, Column: f.Pos().Column,
					Message: fmt.Sprintf("bit-field width %d out of range [1,32]", width)}
			}
			if !inBitUnit {
				bitUnitOffset = alignUp(offset, 4)
				bitUnitUsed = 0
				inBitUnit = true
			} else if uint32(bitUnitUsed)+uint32(width) > 32 {
				bitUnitOffset = alignUp(bitUnitOffset+4, 4)
				bitUnitUsed = 0
			}
			fieldOffset := bitUnitOffset
			if isUnion {
				fieldOffset = 0
				if 4 > unionMaxSize {
					unionMaxSize = 4
				}
			}
			layout.Fields = append(layout.Fields, FieldDescriptor{
				Name: f.Name.Lexeme(a.src), Type: typ,
				ByteOffset: fieldOffset, BitOffset: bitUnitUsed, BitWidth: uint8(width),
			})
			bitUnitUsed += uint8(width)
			if !isUnion {
				offset = bitUnitOffset
			}
			if 4 > maxAlign {
				maxAlign = 4
			}
			continue
		}

		flushBitUnit()
		align := typ.Align(a.layouts)
		size := typ.Size(a.layouts)
		if align > maxAlign {
			maxAlign = align
		}
		fieldOffset := place(align, size)
		layout.Fields = append(layout.Fields, FieldDescriptor{
			Name: f.Name.Lexeme(a.src), Type: typ, ByteOffset: fieldOffset,
		})
	}
	flushBitUnit()

	if isUnion {
		layout.Size = alignUp(unionMaxSize, maxAlign)
		for i := range layout.Fields {
			layout.Fields[i].ByteOffset = 0
		}
	} else {
		layout.Size = alignUp(offset, maxAlign)
	}
	layout.Align = maxAlign
	return layout, nil
}
