package codec

// Scanner iterates the live entries of a log buffer from offset 0 forward.
// Dead entries are skipped. Iteration ends at the end of the buffer or at the
// first record that cannot be decoded, in which case Err reports the failure.
//
// A Scanner is not restartable; create a new one to scan again.
//
// Usage:
//
//	sc := codec.NewScanner(data)
//	for sc.Next() {
//		e := sc.Entry()
//		...
//	}
//	if err := sc.Err(); err != nil {
//		...
//	}
type Scanner struct {
	buf    []byte
	cursor int
	entry  Entry
	err    error
}

// NewScanner creates a scanner over buf. The buffer must not be modified while scanning.
func NewScanner(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// Next advances to the next live entry and reports whether there is one
func (s *Scanner) Next() bool {
	for s.err == nil && s.cursor < len(s.buf) {
		e, err := Decode(s.buf, s.cursor)
		if err != nil {
			s.err = err
			return false
		}
		s.cursor += e.Len
		if e.Live {
			s.entry = e
			return true
		}
	}
	return false
}

// Entry returns the entry found by the last successful call to Next
func (s *Scanner) Entry() Entry {
	return s.entry
}

// Err returns the decode error that stopped the scan, if any
func (s *Scanner) Err() error {
	return s.err
}

// Find scans buf for the first live entry with the given key.
// The boolean is false if no such entry exists.
func Find(buf []byte, key string) (Entry, bool, error) {
	sc := NewScanner(buf)
	for sc.Next() {
		if e := sc.Entry(); e.Key == key {
			return e, true, nil
		}
	}
	return Entry{}, false, sc.Err()
}
