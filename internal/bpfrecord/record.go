// Package bpfrecord decodes the fixed binary records written by the kernel
// probe across the ring buffer boundary. The layout is that of the
// exec_record/exit_record structs in bpf/tracepoints.c and must be kept in
// sync with them byte-for-byte.
package bpfrecord

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// TagExec marks a ProcessExecEvent record.
	TagExec uint8 = 1
	// TagExit marks a ProcessExitEvent record.
	TagExit uint8 = 2

	commLen     = 16
	filenameLen = 256

	// ExecRecordSize is the on-wire size of an exec record (§6).
	ExecRecordSize = 304
	// ExitRecordSize is the on-wire size of an exit record (§6).
	ExitRecordSize = 48
)

// rawExec mirrors the kernel's ProcessExecEvent exactly: all scalars at
// fixed, compile-time-constant offsets, host-endian, naturally aligned.
type rawExec struct {
	Tag       uint8
	_         [3]byte
	Pid       uint32
	Tgid      uint32
	Ppid      uint32
	Uid       uint32
	_         uint32
	Timestamp uint64
	Comm      [commLen]byte
	Filename  [filenameLen]byte
}

// rawExit mirrors the kernel's ProcessExitEvent exactly.
type rawExit struct {
	Tag       uint8
	_         [3]byte
	Pid       uint32
	Tgid      uint32
	Uid       uint32
	ExitCode  int32
	_         uint32
	Timestamp uint64
	Comm      [commLen]byte
}

// ExecRecord is the decoded, Go-friendly form of a kernel exec event.
type ExecRecord struct {
	Pid         uint32
	Tgid        uint32
	Ppid        uint32
	Uid         uint32
	TimestampNs uint64
	Comm        string
	Filename    string
}

// ExitRecord is the decoded, Go-friendly form of a kernel exit event.
type ExitRecord struct {
	Pid         uint32
	Tgid        uint32
	Uid         uint32
	ExitCode    int32
	TimestampNs uint64
	Comm        string
}

// DecodeExec parses a ring buffer payload into an ExecRecord. The first byte
// must be TagExec; the payload must be at least ExecRecordSize bytes.
func DecodeExec(data []byte) (ExecRecord, error) {
	if len(data) < 1 || data[0] != TagExec {
		return ExecRecord{}, fmt.Errorf("bpfrecord: not an exec record (tag=%v)", firstByte(data))
	}
	if len(data) < ExecRecordSize {
		return ExecRecord{}, fmt.Errorf("bpfrecord: short exec record: %d bytes", len(data))
	}

	var raw rawExec
	if err := binary.Read(bytes.NewReader(data[:ExecRecordSize]), binary.NativeEndian, &raw); err != nil {
		return ExecRecord{}, fmt.Errorf("bpfrecord: decode exec record: %w", err)
	}

	return ExecRecord{
		Pid:         raw.Pid,
		Tgid:        raw.Tgid,
		Ppid:        raw.Ppid,
		Uid:         raw.Uid,
		TimestampNs: raw.Timestamp,
		Comm:        cString(raw.Comm[:]),
		Filename:    cString(raw.Filename[:]),
	}, nil
}

// DecodeExit parses a ring buffer payload into an ExitRecord. The first byte
// must be TagExit; the payload must be at least ExitRecordSize bytes.
func DecodeExit(data []byte) (ExitRecord, error) {
	if len(data) < 1 || data[0] != TagExit {
		return ExitRecord{}, fmt.Errorf("bpfrecord: not an exit record (tag=%v)", firstByte(data))
	}
	if len(data) < ExitRecordSize {
		return ExitRecord{}, fmt.Errorf("bpfrecord: short exit record: %d bytes", len(data))
	}

	var raw rawExit
	if err := binary.Read(bytes.NewReader(data[:ExitRecordSize]), binary.NativeEndian, &raw); err != nil {
		return ExitRecord{}, fmt.Errorf("bpfrecord: decode exit record: %w", err)
	}

	return ExitRecord{
		Pid:         raw.Pid,
		Tgid:        raw.Tgid,
		Uid:         raw.Uid,
		ExitCode:    raw.ExitCode,
		TimestampNs: raw.Timestamp,
		Comm:        cString(raw.Comm[:]),
	}, nil
}

// EncodeExec is the test-only inverse of DecodeExec: it builds a record
// byte-by-byte at the §6 offsets, the way the kernel probe would.
func EncodeExec(r ExecRecord) []byte {
	raw := rawExec{
		Tag:       TagExec,
		Pid:       r.Pid,
		Tgid:      r.Tgid,
		Ppid:      r.Ppid,
		Uid:       r.Uid,
		Timestamp: r.TimestampNs,
	}
	copy(raw.Comm[:], r.Comm)
	copy(raw.Filename[:], r.Filename)

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.NativeEndian, raw)
	return buf.Bytes()
}

// EncodeExit is the test-only inverse of DecodeExit.
func EncodeExit(r ExitRecord) []byte {
	raw := rawExit{
		Tag:       TagExit,
		Pid:       r.Pid,
		Tgid:      r.Tgid,
		Uid:       r.Uid,
		ExitCode:  r.ExitCode,
		Timestamp: r.TimestampNs,
	}
	copy(raw.Comm[:], r.Comm)

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.NativeEndian, raw)
	return buf.Bytes()
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func firstByte(data []byte) int {
	if len(data) == 0 {
		return -1
	}
	return int(data[0])
}
