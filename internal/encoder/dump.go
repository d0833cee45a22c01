package encoder

import (
	"bufio"
	"os"
)

// dumpSink appends raw elementary stream bytes to a local file. The format
// is whatever the encoder emits and is only meant for inspection.
type dumpSink struct {
	f *os.File
	w *bufio.Writer
}

func openDump(path string) (*dumpSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &dumpSink{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (d *dumpSink) Write(p []byte) (int, error) {
	return d.w.Write(p)
}

func (d *dumpSink) Close() error {
	flushErr := d.w.Flush()
	if err := d.f.Close(); err != nil {
		return err
	}
	return flushErr
}
