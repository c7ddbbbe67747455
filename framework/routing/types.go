package routing

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/km-arc/go-builder/framework/builder"
)

// Types returns the construction recipe for Router.
//
//	router:
//	  class: Router
//	  construct: [logger]          # optional *zap.Logger
//	  clone: false
//	  method:
//	    middleware: [{string: nocache}]
//	    get: [{string: /health}, {callback: routing.json, argument: [{integer: 200}, {object: {ok: true}}]}]
//	    mount: [{string: /admin}, admin.router]
//
// Methods: get, post, put, patch, delete, options, head, any (pattern,
// handler); mount (pattern, handler); middleware (middleware...); static
// (prefix, dir). A handler is an http.Handler, a handler func, or a string
// body. A middleware is a func or one of the names accepted by Named.
func Types() map[string]*builder.Type {
	t := &builder.Type{New: newFromArgs}
	for _, verb := range []string{"get", "post", "put", "patch", "delete", "options", "head"} {
		method := strings.ToUpper(verb)
		t.Method(verb, route(func(r *Router, pattern string, h http.Handler) { r.Method(method, pattern, h) }))
	}
	t.Method("any", route((*Router).Any))
	t.Method("mount", route((*Router).Mount))
	t.Method("middleware", func(obj any, args []any) error {
		mws := make([]func(http.Handler) http.Handler, 0, len(args))
		for i, arg := range args {
			mw, err := middlewareOf(arg)
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			mws = append(mws, mw)
		}
		obj.(*Router).Middleware(mws...)
		return nil
	})
	t.Method("static", func(obj any, args []any) error {
		if len(args) != 2 {
			return fmt.Errorf("routing: static takes (prefix, dir), got %d arguments", len(args))
		}
		obj.(*Router).Static(cast.ToString(args[0]), cast.ToString(args[1]))
		return nil
	})
	return map[string]*builder.Type{"Router": t}
}

// Functions returns the handler constructors manifests can call.
func Functions() map[string]any {
	return map[string]any{
		"routing.json":     JSON,
		"routing.text":     Text,
		"routing.redirect": Redirect,
	}
}

func newFromArgs(args []any) (any, error) {
	var opts []Option
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
		case *zap.Logger:
			opts = append(opts, WithLogger(v))
		default:
			return nil, builder.ArgumentError{Target: "Router", Index: i, Want: "*zap.Logger", Got: fmt.Sprintf("%T", arg)}
		}
	}
	return New(opts...), nil
}

func route(add func(r *Router, pattern string, h http.Handler)) func(obj any, args []any) error {
	return func(obj any, args []any) error {
		if len(args) != 2 {
			return fmt.Errorf("routing: want (pattern, handler), got %d arguments", len(args))
		}
		pattern, err := cast.ToStringE(args[0])
		if err != nil {
			return fmt.Errorf("routing: pattern: %w", err)
		}
		h, err := handlerOf(args[1])
		if err != nil {
			return err
		}
		add(obj.(*Router), pattern, h)
		return nil
	}
}
