package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const masked = "***"

// MaskHandler replaces the values of sensitive keys before passing records
// to the wrapped handler.
type MaskHandler struct {
	handler  slog.Handler
	maskKeys map[string]struct{}
}

// NewMaskHandler wraps h, masking the given keys.
func NewMaskHandler(h slog.Handler, keys []string) *MaskHandler {
	return &MaskHandler{handler: h, maskKeys: buildMaskKeys(keys)}
}

func (h *MaskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *MaskHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.maskKeys) == 0 {
		return h.handler.Handle(ctx, record)
	}

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(maskAttr(attr, h.maskKeys))
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *MaskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = maskAttr(a, h.maskKeys)
	}
	return &MaskHandler{handler: h.handler.WithAttrs(clean), maskKeys: h.maskKeys}
}

func (h *MaskHandler) WithGroup(name string) slog.Handler {
	return &MaskHandler{handler: h.handler.WithGroup(name), maskKeys: h.maskKeys}
}

func buildMaskKeys(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

func maskAttr(attr slog.Attr, keys map[string]struct{}) slog.Attr {
	if _, found := keys[strings.ToLower(attr.Key)]; found {
		return slog.String(attr.Key, masked)
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			out = append(out, maskAttr(ga, keys))
		}
		attr.Value = slog.GroupValue(out...)
	case slog.KindString:
		if s, ok := maskJSON([]byte(attr.Value.String()), keys); ok {
			attr.Value = slog.StringValue(s)
		}
	case slog.KindAny:
		switch v := attr.Value.Any().(type) {
		case map[string]any:
			attr.Value = slog.AnyValue(maskData(v, keys))
		case map[string]string:
			m := make(map[string]any, len(v))
			for k, s := range v {
				m[k] = s
			}
			attr.Value = slog.AnyValue(maskData(m, keys))
		case []any:
			attr.Value = slog.AnyValue(maskData(v, keys))
		case []byte:
			if s, ok := maskJSON(v, keys); ok {
				attr.Value = slog.StringValue(s)
			}
		}
	}
	return attr
}

func maskJSON(payload []byte, keys map[string]struct{}) (string, bool) {
	if len(payload) == 0 || (payload[0] != '{' && payload[0] != '[') {
		return "", false
	}
	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", false
	}
	b, err := json.Marshal(maskData(body, keys))
	if err != nil {
		return "", false
	}
	return string(b), true
}

func maskData(v any, keys map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if _, found := keys[strings.ToLower(k)]; found {
				out[k] = masked
			} else {
				out[k] = maskData(v2, keys)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = maskData(v2, keys)
		}
		return out
	default:
		return v
	}
}
