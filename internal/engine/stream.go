package engine

import "io"

// stdioStream adapts a child process's stdin/stdout pipes into the single
// read-write-closer jsonrpc2 expects.
type stdioStream struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (s stdioStream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

func (s stdioStream) Write(p []byte) (int, error) {
	return s.in.Write(p)
}

func (s stdioStream) Close() error {
	err := s.in.Close()
	if cerr := s.out.Close(); err == nil {
		err = cerr
	}
	return err
}
