// Package pre is the public interface of the precondition processor.
//
// Functions document the assumptions they make about their callers with
// directive comments, and every call site restates them with a reason:
//
//	//pre:require valid_ptr(src), reason = "src is dereferenced without a nil check"
//	func Read(src *byte) byte { return *src }
//
//	//pre:assert valid_ptr(src), reason = "src points into a live buffer"
//	v := Read(src)
//
// The pre tool rewrites both sides before compilation. A declaration gains a
// trailing parameter whose type is an anonymous struct; each field of that
// struct is one of the marker types below and its tag spells the condition.
// A call gains the matching zero value. Struct tags take part in Go type
// identity, so a call that asserts a different set of conditions than the
// callee declares is rejected by the compiler as an ordinary type mismatch.
//
// Nothing in this package runs a check at run time. The marker types have
// no fields and cost nothing to pass.
package pre
