// Package precondition provides the data model shared by every stage of the
// processor: the closed set of condition kinds, a precondition with its
// optional reason and source span, and lists of preconditions.
//
// This package imports nothing internal. A precondition without a reason is
// a valid value here; reasons are enforced by the validator so that partly
// invalid input can still be diagnosed precisely.
package precondition
