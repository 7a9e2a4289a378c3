// Package bpf implements the Loader (spec.md §4.3) and Ring Buffer Bridge
// (spec.md §4.2): locating the compiled probe object on disk, attaching its
// two tracepoint programs, and handing the EVENTS ring buffer to the Event
// Processor.
package bpf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// ObjectFileName is the compiled probe artifact bpf2go-style build output
// (see bpf/tracepoints.c).
const ObjectFileName = "tracepoints.o"

// execProgram and exitProgram are the tracepoint program names inside the
// object file; they must match bpf/tracepoints.c.
const (
	execProgram = "sched_process_exec"
	exitProgram = "sched_process_exit"

	tracepointCategory = "sched"

	// eventsMapName is the ring buffer map exposed to userspace (spec.md §4.3).
	eventsMapName = "EVENTS"
)

// CandidatePaths returns the ordered list of locations the Loader searches
// for the compiled probe object (spec.md §4.3: "try a known set of
// candidate paths in order").
func CandidatePaths() []string {
	paths := []string{
		filepath.Join("/usr/lib/notify-done", ObjectFileName),
		filepath.Join("/usr/local/lib/notify-done", ObjectFileName),
	}

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "..", "bpf", ObjectFileName))
	}

	return paths
}

// Loader loads the probe's bytecode, attaches it to both tracepoints, and
// exposes the EVENTS ring buffer.
type Loader struct {
	collection *ebpf.Collection
	execLink   link.Link
	exitLink   link.Link
}

// Load finds the first existing candidate object file, loads it into the
// kernel, and attaches both tracepoint programs. It fails fatally (per
// spec.md §4.3, §7) if the artifact is missing, the verifier rejects a
// program, or a tracepoint name cannot be resolved.
func Load() (*Loader, error) {
	objPath, err := findObjectFile(CandidatePaths())
	if err != nil {
		return nil, err
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("bpf: remove memlock rlimit: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("bpf: load collection spec from %s: %w", objPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("bpf: verifier rejected probe collection: %w", err)
	}

	l := &Loader{collection: coll}
	if err := l.attach(); err != nil {
		coll.Close()
		return nil, err
	}

	return l, nil
}

func (l *Loader) attach() error {
	execProg, ok := l.collection.Programs[execProgram]
	if !ok {
		return fmt.Errorf("bpf: program %q not found in probe object", execProgram)
	}
	execLink, err := link.Tracepoint(tracepointCategory, execProgram, execProg, nil)
	if err != nil {
		return fmt.Errorf("bpf: attach %s/%s: %w", tracepointCategory, execProgram, err)
	}
	l.execLink = execLink

	exitProg, ok := l.collection.Programs[exitProgram]
	if !ok {
		return fmt.Errorf("bpf: program %q not found in probe object", exitProgram)
	}
	exitLink, err := link.Tracepoint(tracepointCategory, exitProgram, exitProg, nil)
	if err != nil {
		return fmt.Errorf("bpf: attach %s/%s: %w", tracepointCategory, exitProgram, err)
	}
	l.exitLink = exitLink

	return nil
}

// RingReader returns a reader for the EVENTS ring buffer (spec.md §4.2,
// §4.3: "expose the ring buffer to userspace by name lookup (EVENTS)").
func (l *Loader) RingReader() (*ringbuf.Reader, error) {
	m, ok := l.collection.Maps[eventsMapName]
	if !ok {
		return nil, fmt.Errorf("bpf: map %q not found in probe object", eventsMapName)
	}
	reader, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, fmt.Errorf("bpf: open ring buffer reader: %w", err)
	}
	return reader, nil
}

// Close detaches both tracepoints and releases the collection. Safe to call
// on a Loader whose attach partially failed.
func (l *Loader) Close() error {
	var firstErr error
	for _, link := range []link.Link{l.execLink, l.exitLink} {
		if link == nil {
			continue
		}
		if err := link.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("bpf: close tracepoint link: %w", err)
		}
	}
	if l.collection != nil {
		l.collection.Close()
	}
	return firstErr
}

func findObjectFile(candidates []string) (string, error) {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("bpf: probe object not found, tried: %v", candidates)
}
