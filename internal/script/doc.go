// Package script embeds a sandboxed Lua runtime for driving field
// interception from scripts.
//
// The host binds Go targets under names, and scripts address them by
// string through the watch module:
//
//	watch.after_get("doc", "user.name", function(target, field, value)
//	    return string.upper(value)
//	end)
//
//	watch.before_set("doc", "user.age", function(target, field, value)
//	    if value < 0 then
//	        watch.veto("age must not be negative")
//	    end
//	    return value
//	end)
//
//	watch.set("doc", "user.age", 37)
//	print(watch.get("doc", "user.name"))
//
// Transform hooks must return the value to pass along the chain;
// observer hooks registered with watch.after_set return nothing.
// watch.veto raises out of a before-set hook and surfaces to the
// writing script as a Lua error.
//
// The two set-side registrars preserve the engine's sentinel contract:
// on a callable-valued field they return nil plus a message instead of
// raising, so scripts can branch without pcall.
//
// # Sandbox
//
// States are created with a restricted library set: base, table,
// string, and math only. io, os, debug, and package never load, and
// the load/loadfile/dofile family is removed. Lua execution is
// single-threaded; an Engine must not be shared across goroutines.
package script
