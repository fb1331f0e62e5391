package server

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ValentinKolb/lKV/lib/codec"
	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/ValentinKolb/lKV/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.IStore {
	return lstore.NewLogStore(filepath.Join(t.TempDir(), "lkv.log"))
}

func TestDispatcherVerbs(t *testing.T) {
	adapter := NewIStoreServerAdapter()
	s := newTestStore(t)

	steps := []struct {
		line string
		want string
	}{
		{"size", "0"},
		{"dump", "{\n}"},
		{"set a 1", "wrote a=1. 11 bytes"},
		{"set b 2 extra tokens", "wrote b=2. 11 bytes"},
		{"get a", "1"},
		{"get b", "2"},
		{"set a 3", "wrote a=3. 11 bytes"},
		{"get a", "3"},
		{"size", "33"},
		{"dump", "{\n  \"a\": \"3\",\n  \"b\": \"2\",\n}"},
		{"delete b", "deleted b"},
		{"get b", `error: key "b" not found`},
		{"delete b", `error: key "b" not found`},
		{"compact", "compacted to 11 bytes"},
		{"size", "11"},
		{"dump", "{\n  \"a\": \"3\",\n}"},
		{"frobnicate", "unrecognized"},
		{"GET a", "unrecognized"},
		{"   ", "unrecognized"},
		{"get", "error: missing argument: key"},
		{"delete", "error: missing argument: key"},
		{"set", "error: missing argument: key"},
		{"set a", "error: missing argument: value"},
	}

	for _, step := range steps {
		assert.Equal(t, step.want, adapter.Handle(step.line, s), "request %q", step.line)
	}
}

func TestDispatcherSetReportsEncodedLength(t *testing.T) {
	adapter := NewIStoreServerAdapter()
	s := newTestStore(t)

	resp := adapter.Handle("set schlüssel wert", s)
	assert.Equal(t, "wrote schlüssel=wert. "+strconv.Itoa(codec.EncodedLen("schlüssel", "wert"))+" bytes", resp)
}

func TestDispatcherHelp(t *testing.T) {
	adapter := NewIStoreServerAdapter()

	lines := strings.Split(adapter.Handle("help", newTestStore(t)), "\n")
	assert.Equal(t, []string{
		"get <key>",
		"set <key> <value>",
		"delete <key>",
		"dump",
		"size",
		"compact",
		"help",
	}, lines)
}

func TestDispatcherNilStore(t *testing.T) {
	adapter := NewIStoreServerAdapter()
	assert.Equal(t, "error: store is nil", adapter.Handle("get a", nil))
	assert.Equal(t, "unrecognized", adapter.Handle("frobnicate", nil))
}

func TestDispatcherMetrics(t *testing.T) {
	adapter := NewIStoreServerAdapter()
	s := newTestStore(t)

	adapter.Handle("set a 1", s)
	adapter.Handle("get a", s)
	adapter.Handle("get missing", s)
	adapter.Handle("frobnicate", s)

	var buf bytes.Buffer
	adapter.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `lkv_commands_total{verb="set"} 1`)
	assert.Contains(t, out, `lkv_commands_total{verb="get"} 2`)
	assert.Contains(t, out, `lkv_commands_total{verb="unrecognized"} 1`)
	assert.Contains(t, out, `lkv_command_errors_total{verb="get"} 1`)
	assert.NotContains(t, out, `lkv_command_errors_total{verb="set"}`)
}

func TestFormatDumpQuotes(t *testing.T) {
	out := FormatDump(map[string]string{"b": "x\"y", "a": "~> "})
	require.Equal(t, "{\n  \"a\": \"~> \",\n  \"b\": \"x\\\"y\",\n}", out)
}

func TestMissingArgumentError(t *testing.T) {
	err := &MissingArgumentError{Name: "value"}
	assert.EqualError(t, err, "missing argument: value")
}
