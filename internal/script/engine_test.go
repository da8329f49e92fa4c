package script_test

import (
	"strings"
	"testing"

	"fieldwatch/internal/intercept"
	"fieldwatch/internal/jsondoc"
	"fieldwatch/internal/script"
)

func newEngine(t *testing.T) (*script.Engine, *intercept.Registry) {
	t.Helper()
	reg := intercept.New()
	eng := script.NewEngine(reg)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, reg
}

// TestScriptAfterGet verifies a script-registered read hook transforms
// values for both script and Go readers.
func TestScriptAfterGet(t *testing.T) {
	eng, reg := newEngine(t)
	obj := map[string]any{"name": "ada"}
	if err := eng.Bind("obj", obj); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err := eng.DoString(`
		watch.after_get("obj", "name", function(target, field, value)
			return string.upper(value)
		end)
		result = watch.get("obj", "name")
	`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}

	v, err := reg.Get(obj, "name")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if v != "ADA" {
		t.Errorf("expected %q, got %v", "ADA", v)
	}
}

// TestScriptBeforeSetTransform verifies a script transform hook feeds
// the commit and writes through to the target.
func TestScriptBeforeSetTransform(t *testing.T) {
	eng, _ := newEngine(t)
	obj := map[string]any{}
	if err := eng.Bind("obj", obj); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err := eng.DoString(`
		watch.before_set("obj", "y", function(target, field, value)
			return value * 2
		end)
		committed = watch.set("obj", "y", 5)
	`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}

	if obj["y"] != int64(10) {
		t.Errorf("expected write-through 10, got %v (%T)", obj["y"], obj["y"])
	}
}

// TestScriptVeto verifies watch.veto aborts the write and surfaces as
// both a Lua error and an engine veto.
func TestScriptVeto(t *testing.T) {
	eng, reg := newEngine(t)
	obj := map[string]any{"age": int64(30)}
	if err := eng.Bind("obj", obj); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err := eng.DoString(`
		watch.before_set("obj", "age", function(target, field, value)
			if value < 0 then
				watch.veto("age must not be negative")
			end
			return value
		end)
	`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}

	// Veto reaches a Go writer as ErrVetoed.
	_, err = reg.Set(obj, "age", int64(-1))
	if err == nil {
		t.Fatal("expected veto error")
	}
	if got := err.Error(); !strings.Contains(got, "age must not be negative") {
		t.Errorf("expected veto reason in error, got %q", got)
	}

	v, err := reg.Get(obj, "age")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if v != int64(30) {
		t.Errorf("expected cached value unchanged at 30, got %v", v)
	}

	// Veto reaches a script writer as a Lua error.
	err = eng.DoString(`watch.set("obj", "age", -5)`)
	if err == nil {
		t.Fatal("expected Lua error from vetoed set")
	}
	if !strings.Contains(err.Error(), "age must not be negative") {
		t.Errorf("expected veto reason in Lua error, got %q", err.Error())
	}

	// Valid writes still commit.
	err = eng.DoString(`watch.set("obj", "age", 31)`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}
	if obj["age"] != int64(31) {
		t.Errorf("expected committed 31, got %v", obj["age"])
	}
}

// TestScriptAfterSetObserver verifies observers registered from Lua
// fire on changing commits only.
func TestScriptAfterSetObserver(t *testing.T) {
	eng, reg := newEngine(t)
	obj := map[string]any{"n": int64(1)}
	if err := eng.Bind("obj", obj); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err := eng.DoString(`
		log = {}
		watch.after_set("obj", "n", function(target, field, value)
			log[#log + 1] = value
		end)
		watch.set("obj", "n", 1)
		watch.set("obj", "n", 2)
	`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}

	// Only the changing commit (2) should have been observed.
	err = eng.DoString(`
		assert(#log == 1, "expected 1 observation, got " .. #log)
		assert(log[1] == 2, "expected observed value 2, got " .. tostring(log[1]))
	`)
	if err != nil {
		t.Errorf("observer log assertion failed: %v", err)
	}

	if v, _ := reg.Get(obj, "n"); v != int64(2) {
		t.Errorf("expected committed 2, got %v", v)
	}
}

// TestScriptCallableGuardSentinel verifies set-side registrars return
// nil plus a message, rather than raising, on callable-valued fields.
func TestScriptCallableGuardSentinel(t *testing.T) {
	eng, _ := newEngine(t)
	obj := map[string]any{"fn": func() {}}
	if err := eng.Bind("obj", obj); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err := eng.DoString(`
		ok, msg = watch.before_set("obj", "fn", function(t, f, v) return v end)
		assert(ok == nil, "expected nil result for callable field")
		assert(type(msg) == "string", "expected a message")

		ok2 = watch.after_get("obj", "fn", function(t, f, v) return v end)
		assert(ok2 == true, "expected read-side install to succeed")
	`)
	if err != nil {
		t.Errorf("unexpected script error: %v", err)
	}
}

// TestScriptUnknownTarget verifies unbound names raise.
func TestScriptUnknownTarget(t *testing.T) {
	eng, _ := newEngine(t)

	err := eng.DoString(`watch.get("nope", "x")`)
	if err == nil {
		t.Fatal("expected error for unknown target")
	}
	if !strings.Contains(err.Error(), "unknown target") {
		t.Errorf("expected unknown target message, got %q", err.Error())
	}
}

// TestScriptJSONDocument verifies the Lua surface composes with a JSON
// document target.
func TestScriptJSONDocument(t *testing.T) {
	eng, _ := newEngine(t)
	doc, err := jsondoc.Parse(`{"user":{"name":"ada","age":36}}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if err := eng.Bind("doc", doc); err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}

	err = eng.DoString(`
		watch.before_set("doc", "user.age", function(target, field, value)
			if value < 0 then
				watch.veto("negative age")
			end
			return value
		end)
		watch.set("doc", "user.age", 37)
	`)
	if err != nil {
		t.Fatalf("unexpected script error: %v", err)
	}

	if v, _ := doc.ReadField("user.age"); v != float64(37) {
		t.Errorf("expected document age 37, got %v", v)
	}

	err = eng.DoString(`watch.set("doc", "user.age", -4)`)
	if err == nil {
		t.Fatal("expected veto from script write")
	}
	if v, _ := doc.ReadField("user.age"); v != float64(37) {
		t.Errorf("expected document unchanged after veto, got %v", v)
	}
}

// TestSandboxStripsUnsafe verifies io/os and the code-loading family
// are unavailable to scripts.
func TestSandboxStripsUnsafe(t *testing.T) {
	eng, _ := newEngine(t)

	err := eng.DoString(`
		assert(io == nil, "io should not be loaded")
		assert(os == nil, "os should not be loaded")
		assert(load == nil, "load should be stripped")
		assert(dofile == nil, "dofile should be stripped")
	`)
	if err != nil {
		t.Errorf("unexpected script error: %v", err)
	}
}

// TestEngineClosed verifies operations fail after Close.
func TestEngineClosed(t *testing.T) {
	reg := intercept.New()
	eng := script.NewEngine(reg)
	if err := eng.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if err := eng.DoString(`x = 1`); err != script.ErrEngineClosed {
		t.Errorf("expected ErrEngineClosed, got %v", err)
	}
	if err := eng.Bind("obj", map[string]any{}); err != script.ErrEngineClosed {
		t.Errorf("expected ErrEngineClosed, got %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}
}
