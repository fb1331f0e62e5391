package server

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// Response of every verb that is not known
const unrecognized = "unrecognized"

// MissingArgumentError is returned when a verb is called with too few arguments
type MissingArgumentError struct {
	Name string
}

func (e *MissingArgumentError) Error() string {
	return "missing argument: " + e.Name
}

// command describes one verb of the line protocol
type command struct {
	name  string
	usage string
	run   func(args []string, s store.IStore) (string, error)
}

// NewIStoreServerAdapter creates the command dispatcher of the line protocol.
// Every request is split into whitespace separated tokens, the first token
// selects the verb and surplus tokens are ignored.
func NewIStoreServerAdapter() IRPCServerAdapter {
	adapter := &iStoreServerAdapterImpl{
		metrics: metrics.NewSet(),
	}
	adapter.commands = []command{
		{name: "get", usage: "get <key>", run: runGet},
		{name: "set", usage: "set <key> <value>", run: runSet},
		{name: "delete", usage: "delete <key>", run: runDelete},
		{name: "dump", usage: "dump", run: runDump},
		{name: "size", usage: "size", run: runSize},
		{name: "compact", usage: "compact", run: runCompact},
		{name: "help", usage: "help", run: adapter.runHelp},
	}
	return adapter
}

type iStoreServerAdapterImpl struct {
	commands []command
	metrics  *metrics.Set
}

func (adapter *iStoreServerAdapterImpl) Handle(line string, s store.IStore) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return unrecognized
	}

	cmd, ok := adapter.lookup(fields[0])
	if !ok {
		adapter.count(unrecognized)
		return unrecognized
	}
	adapter.count(cmd.name)

	// Check for nil store
	if s == nil {
		adapter.countError(cmd.name)
		return "error: store is nil"
	}

	resp, err := cmd.run(fields[1:], s)
	if err != nil {
		adapter.countError(cmd.name)
		return "error: " + err.Error()
	}
	return resp
}

func (adapter *iStoreServerAdapterImpl) WritePrometheus(w io.Writer) {
	adapter.metrics.WritePrometheus(w)
}

func (adapter *iStoreServerAdapterImpl) lookup(verb string) (command, bool) {
	for _, cmd := range adapter.commands {
		if cmd.name == verb {
			return cmd, true
		}
	}
	return command{}, false
}

func (adapter *iStoreServerAdapterImpl) count(verb string) {
	adapter.metrics.GetOrCreateCounter(fmt.Sprintf(`lkv_commands_total{verb=%q}`, verb)).Inc()
}

func (adapter *iStoreServerAdapterImpl) countError(verb string) {
	adapter.metrics.GetOrCreateCounter(fmt.Sprintf(`lkv_command_errors_total{verb=%q}`, verb)).Inc()
}

// --------------------------------------------------------------------------
// Verbs
// --------------------------------------------------------------------------

func runGet(args []string, s store.IStore) (string, error) {
	if len(args) < 1 {
		return "", &MissingArgumentError{Name: "key"}
	}
	return s.Get(args[0])
}

func runSet(args []string, s store.IStore) (string, error) {
	if len(args) < 1 {
		return "", &MissingArgumentError{Name: "key"}
	}
	if len(args) < 2 {
		return "", &MissingArgumentError{Name: "value"}
	}
	key, value := args[0], args[1]
	n, err := s.Set(key, value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %s=%s. %d bytes", key, value, n), nil
}

func runDelete(args []string, s store.IStore) (string, error) {
	if len(args) < 1 {
		return "", &MissingArgumentError{Name: "key"}
	}
	if err := s.Delete(args[0]); err != nil {
		return "", err
	}
	return "deleted " + args[0], nil
}

func runDump(_ []string, s store.IStore) (string, error) {
	entries, err := s.Dump()
	if err != nil {
		return "", err
	}
	return FormatDump(entries), nil
}

func runSize(_ []string, s store.IStore) (string, error) {
	size, err := s.Size()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(size, 10), nil
}

func runCompact(_ []string, s store.IStore) (string, error) {
	size, err := s.Compact()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("compacted to %d bytes", size), nil
}

func (adapter *iStoreServerAdapterImpl) runHelp(_ []string, _ store.IStore) (string, error) {
	usages := make([]string, 0, len(adapter.commands))
	for _, cmd := range adapter.commands {
		usages = append(usages, cmd.usage)
	}
	return strings.Join(usages, "\n"), nil
}

// FormatDump renders entries as a brace delimited block with one quoted
// "key": "value", line per entry, sorted by key
func FormatDump(entries map[string]string) string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s: %s,\n", strconv.Quote(k), strconv.Quote(entries[k])))
	}
	sb.WriteString("}")
	return sb.String()
}
