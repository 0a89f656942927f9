package dispatch

import (
	"reflect"
	"runtime"
	"strings"
)

// Registration describes one handler item. Zero-valued fields fall back to
// the package defaults (DefaultFilter, DefaultParser, DefaultDecoder).
type Registration struct {
	Name        string
	Description string
	Filter      FilterFunc
	Parser      ParserFunc
	Decoder     DecoderFunc
	Middlewares []MiddlewareFactory
	Handler     HandlerFunc
	Publishers  []Publisher
}

// HandlerItem is one registered (filter, parser, decoder, middlewares,
// handler, publishers) unit. Immutable after registration; registration
// order is fixed at build time and significant.
type HandlerItem struct {
	name        string
	description string
	filter      FilterFunc
	parser      ParserFunc
	decoder     DecoderFunc
	middlewares []MiddlewareFactory
	handler     HandlerFunc
	publishers  []Publisher
}

func newHandlerItem(reg Registration) *HandlerItem {
	item := &HandlerItem{
		name:        reg.Name,
		description: reg.Description,
		filter:      reg.Filter,
		parser:      reg.Parser,
		decoder:     reg.Decoder,
		middlewares: append([]MiddlewareFactory(nil), reg.Middlewares...),
		handler:     reg.Handler,
		publishers:  append([]Publisher(nil), reg.Publishers...),
	}

	if item.filter == nil {
		item.filter = DefaultFilter
	}
	if item.parser == nil {
		item.parser = DefaultParser
	}
	if item.decoder == nil {
		item.decoder = DefaultDecoder
	}
	if item.name == "" {
		item.name = callName(reg.Handler)
	}

	return item
}

func (h *HandlerItem) Name() string { return h.name }

func (h *HandlerItem) Description() string { return h.description }

// PublisherCount reports how many response publishers are statically bound.
func (h *HandlerItem) PublisherCount() int { return len(h.publishers) }

// callName derives a readable name from the handler function symbol,
// trimming the package path and closure suffixes.
func callName(fn HandlerFunc) string {
	if fn == nil {
		return ""
	}

	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "handler"
	}

	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	for strings.HasSuffix(name, ".func1") || strings.HasSuffix(name, ".func2") {
		name = name[:strings.LastIndex(name, ".")]
	}
	if name == "" {
		return "handler"
	}
	return name
}
