package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	magic   uint32 = 0x434D5452 // 'R','T','M','C' little-endian
	version uint32 = 1
)

// Write serializes prog to w in the .vmb container layout: a fixed header
// followed by instruction/constant/string/function/symbol sections. The
// checksum covers every byte after the checksum field itself.
func Write(w io.Writer, prog *Program) error {
	body, err := encodeBody(prog)
	if err != nil {
		return err
	}
	checksum := crc32.ChecksumIEEE(body)

	var header bytes.Buffer
	for _, v := range []uint32{
		magic, version, uint32(prog.Mode),
		uint32(len(prog.Instructions)), uint32(len(prog.Constants)),
		uint32(len(prog.Strings)), uint32(len(prog.Functions)), uint32(len(prog.Symbols)),
		checksum,
	} {
		if err := binary.Write(&header, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func encodeBody(prog *Program) ([]byte, error) {
	var buf bytes.Buffer
	debug := prog.Mode == ModeDebug

	for _, in := range prog.Instructions {
		if len(in.Operands) > 0xFF {
			return nil, fmt.Errorf("bytecode: instruction has %d operands, max 255", len(in.Operands))
		}
		buf.WriteByte(byte(in.Op))
		buf.WriteByte(byte(len(in.Operands)))
		for _, op := range in.Operands {
			if err := binary.Write(&buf, binary.LittleEndian, op); err != nil {
				return nil, err
			}
		}
		if debug {
			if err := binary.Write(&buf, binary.LittleEndian, in.Line); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.LittleEndian, in.Col); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range prog.Constants {
		buf.WriteByte(byte(c.Tag))
		if err := binary.Write(&buf, binary.LittleEndian, c.Bits); err != nil {
			return nil, err
		}
	}

	for _, s := range prog.Strings {
		if len(s) > 0xFFFF {
			return nil, fmt.Errorf("bytecode: string constant too long (%d bytes)", len(s))
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	for _, f := range prog.Functions {
		if err := writeName(&buf, f.Name); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, f.Address); err != nil {
			return nil, err
		}
	}

	if debug {
		for _, s := range prog.Symbols {
			if err := writeName(&buf, s.Name); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.LittleEndian, s.Address); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

func writeName(buf *bytes.Buffer, name string) error {
	if len(name) > 0xFF {
		return fmt.Errorf("bytecode: name %q exceeds 255 bytes", name)
	}
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	return nil
}
