// Package value provides the typed container that backs every feature state.
//
// A feature state carries exactly one value which is either an integer, a string
// or a boolean. Value is a small tagged union over those three variants, with an
// additional null marker so that a string-typed value without content (a feature
// created without an initial value) can be represented faithfully.
//
// # Building values at the boundary
//
// Callers that receive loosely typed input (decoded JSON, form fields, event
// payloads) convert it once with BuildInput:
//
//	in := value.BuildInput(42)
//	// in.Type  == value.TypeInt
//	// in.Field == "integer_value"
//	// in.Value.Interface() == int64(42)
//
// Integers of any Go kind that fit into int64, strings and booleans map to the
// matching variant. Every other input is stored as its string representation.
// Unknown inputs are never rejected; this keeps older clients that send floats or
// structured values working.
//
// # Persistence
//
// Stores keep a value in four columns: type, integer_value, string_value and
// boolean_value. Columns and FromColumns convert between the two forms; the type
// column decides which of the three value columns is authoritative.
//
// # Thread Safety
//
// Value is an immutable value type and safe for concurrent use.
package value
