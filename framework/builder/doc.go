// Package builder resolves declarative instructions into runtime values.
//
// # Overview
//
// An Instruction describes how to produce one value: construct a registered
// type, invoke a function, refer to another alias, or return a literal.
// Instructions nest, so a whole object graph can be described as data and
// kept in a YAML manifest.
//
// A Builder owns three things:
//
//   - the registry: alias → Instruction, filled by Merge
//   - the cache: alias → value, filled lazily by Get and directly by Set
//   - the type and function tables Class and Callback instructions name
//
// # Instructions
//
//	b := builder.New()
//	b.RegisterType("FileLogger", builder.TypeOf(logging.NewFileLogger))
//
//	b.Merge(builder.Instructions{
//	    "logger": builder.Class{
//	        Name:      "FileLogger",
//	        Construct: []builder.Instruction{builder.String{Value: "/tmp/log"}},
//	    },
//	    "app.name": builder.String{Value: "billing"},
//	})
//
//	logger, err := b.Get(ctx, "logger")
//
// The same registry as a manifest:
//
//	logger:
//	  class: FileLogger
//	  construct:
//	    - string: /tmp/log
//	app.name:
//	  string: billing
//
// In map form the kind of an instruction is the first key present in the
// order class, reflection, object, alias, callback, array, string, integer,
// float, bool, instruction. See Decode.
//
// # Lifecycle
//
// Class and Object instructions resolved through an alias are cached under
// that alias. Config.New (or the instruction's New) disables the cache and
// builds fresh every time. Config.Clone (or the instruction's Clone) hands
// out copies of the cached value instead of the shared instance; a value
// implementing Cloner decides how it is copied, anything else is copied
// shallowly. Defaults: New=false, Clone=false, so an alias resolves to one
// shared instance unless something asks otherwise. An "instruction" wrapper
// is transparent: what it wraps is cached under the outer alias.
//
// Concurrent first resolutions of one alias build once; every caller gets
// that value. If Set fills the slot while the build runs, the cache keeps the
// Set value and the built one is only returned to the waiting callers.
//
// # Members
//
// After construction a Class applies Properties and then Methods in
// declaration order. Each is looked up in the Type's explicit tables, then
// through the PropertySetter / MethodCaller interfaces, then, for types made
// with TypeOf, as an exported field or method of the instance.
//
// # Modules
//
// A Class with Require asks the Loader to load that path once before
// construction. The loader registers whatever types and functions the module
// provides. A missing path fails with MissingDependencyError.
//
// # Errors
//
// Resolution never retries. Errors are typed (UnresolvedAliasError,
// MissingDependencyError, UnknownKindError, CycleDetectedError, ...) and
// wrapped with the alias, type or member they came from; match them with
// errors.As.
package builder
