package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler writes records to the systemd journal as structured
// fields. Attribute keys become upper-case field names, e.g. the "bps"
// attribute of the "rc" group is stored as RC_BPS.
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string // rendered by WithAttrs
	prefix string            // open groups joined with "_"
}

// NewJournalHandler creates a handler that drops records below level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fields: map[string]string{}}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	if err := journal.Send(r.Message, priority, h.recordFields(r)); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// recordFields merges the handler's fields with the record's attributes.
func (h *JournalHandler) recordFields(r slog.Record) map[string]string {
	fields := maps.Clone(h.fields)
	r.Attrs(func(attr slog.Attr) bool {
		putAttr(fields, h.prefix, attr)
		return true
	})
	fields["SYSLOG_IDENTIFIER"] = Identifier
	return fields
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = maps.Clone(h.fields)
	for _, attr := range attrs {
		putAttr(next.fields, h.prefix, attr)
	}
	return &next
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinField(h.prefix, name)
	return &next
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// putAttr renders attr into fields. Groups are flattened with "_".
func putAttr(fields map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value
	if v.Kind() == slog.KindGroup {
		// an unnamed group is inlined
		if attr.Key != "" {
			prefix = joinField(prefix, attr.Key)
		}
		for _, a := range v.Group() {
			putAttr(fields, prefix, a)
		}
		return
	}

	key := joinField(prefix, attr.Key)
	switch v.Kind() {
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		fields[key] = strconv.FormatBool(v.Bool())
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = v.String()
	}
}

// joinField builds a journal field name. Journal names allow only A-Z, 0-9
// and '_' and must not start with '_', which marks trusted fields.
func joinField(prefix, key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	if prefix != "" {
		return prefix + "_" + name
	}
	name = strings.TrimLeft(name, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "F" + name
	}
	return name
}

// IsJournalAvailable reports whether the journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
