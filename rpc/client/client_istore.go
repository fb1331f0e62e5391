package client

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/ValentinKolb/lKV/rpc/common"
)

// RPCStore implements store.IStore on top of a single line protocol connection.
// It is safe for concurrent use, requests are serialized on the connection.
type RPCStore struct {
	conn *Conn
}

var _ store.IStore = (*RPCStore)(nil)

// NewRPCStore connects to the server described by config
func NewRPCStore(config common.ClientConfig) (*RPCStore, error) {
	conn, err := Dial(config)
	if err != nil {
		return nil, err
	}
	return &RPCStore{conn: conn}, nil
}

// Close ends the session with the server
func (s *RPCStore) Close() error {
	return s.conn.Quit()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *RPCStore) Get(key string) (string, error) {
	if err := checkToken("get", "key", key); err != nil {
		return "", err
	}
	// the response is the stored value, which may be any word
	return s.do("get " + key)
}

func (s *RPCStore) Set(key, value string) (int, error) {
	if err := checkToken("set", "key", key); err != nil {
		return 0, err
	}
	if err := checkToken("set", "value", value); err != nil {
		return 0, err
	}
	resp, err := s.invoke(fmt.Sprintf("set %s %s", key, value))
	if err != nil {
		return 0, err
	}

	// wrote <key>=<value>. <n> bytes
	fields := strings.Fields(resp)
	if len(fields) < 2 || !strings.HasPrefix(resp, "wrote ") {
		return 0, unexpected("set", resp)
	}
	n, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return 0, unexpected("set", resp)
	}
	return n, nil
}

func (s *RPCStore) Delete(key string) error {
	if err := checkToken("delete", "key", key); err != nil {
		return err
	}
	resp, err := s.invoke("delete " + key)
	if err != nil {
		return err
	}
	if resp != "deleted "+key {
		return unexpected("delete", resp)
	}
	return nil
}

func (s *RPCStore) Dump() (map[string]string, error) {
	resp, err := s.invoke("dump")
	if err != nil {
		return nil, err
	}
	entries, err := ParseDump(resp)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "dump: unexpected response", err)
	}
	return entries, nil
}

func (s *RPCStore) Size() (int64, error) {
	resp, err := s.invoke("size")
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseInt(resp, 10, 64)
	if err != nil {
		return 0, unexpected("size", resp)
	}
	return size, nil
}

func (s *RPCStore) Compact() (int64, error) {
	resp, err := s.invoke("compact")
	if err != nil {
		return 0, err
	}
	var size int64
	if _, err := fmt.Sscanf(resp, "compacted to %d bytes", &size); err != nil {
		return 0, unexpected("compact", resp)
	}
	return size, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends line and also treats an unrecognized response as an error
func (s *RPCStore) invoke(line string) (string, error) {
	resp, err := s.do(line)
	if err != nil {
		return "", err
	}
	if resp == "unrecognized" {
		return "", store.NewError(store.RetCInternalError, fmt.Sprintf("rpc: server did not recognize %q", line))
	}
	return resp, nil
}

// do sends line and converts error responses into *store.Error
func (s *RPCStore) do(line string) (string, error) {
	resp, err := s.conn.Do(line)
	if err != nil {
		return "", store.WrapError(store.RetCIOError, "rpc: request failed", err)
	}

	if msg, ok := strings.CutPrefix(resp, "error: "); ok {
		if strings.HasSuffix(msg, "not found") {
			return "", store.NewError(store.RetCNotFound, msg)
		}
		return "", store.NewError(store.RetCInternalError, msg)
	}
	return resp, nil
}

// checkToken rejects arguments the line protocol cannot carry as a single word
func checkToken(op, name, s string) error {
	if s == "" {
		return store.NewError(store.RetCEncoding, fmt.Sprintf("%s: %s must not be empty", op, name))
	}
	if strings.ContainsFunc(s, unicode.IsSpace) {
		return store.NewError(store.RetCEncoding, fmt.Sprintf("%s: %s %q contains whitespace", op, name, s))
	}
	return nil
}

func unexpected(op, resp string) error {
	return store.NewError(store.RetCInternalError, fmt.Sprintf("%s: unexpected response %q", op, resp))
}

// ParseDump parses the brace delimited output of the dump verb
func ParseDump(resp string) (map[string]string, error) {
	lines := strings.Split(resp, "\n")
	if len(lines) < 2 || lines[0] != "{" || lines[len(lines)-1] != "}" {
		return nil, fmt.Errorf("malformed dump %q", resp)
	}

	entries := make(map[string]string, len(lines)-2)
	for _, line := range lines[1 : len(lines)-1] {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")

		quotedKey, err := strconv.QuotedPrefix(line)
		if err != nil {
			return nil, fmt.Errorf("malformed dump line %q: %w", line, err)
		}
		rest, ok := strings.CutPrefix(line[len(quotedKey):], ": ")
		if !ok {
			return nil, fmt.Errorf("malformed dump line %q", line)
		}
		quotedValue, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return nil, fmt.Errorf("malformed dump line %q: %w", line, err)
		}

		key, _ := strconv.Unquote(quotedKey)
		value, _ := strconv.Unquote(quotedValue)
		entries[key] = value
	}
	return entries, nil
}
