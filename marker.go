package pre

// Custom marks a free-form condition. The condition text is carried by the
// struct tag of the field that holds it, e.g. `pre:"len(buf) > 0"`.
type Custom struct{}

// ValidPtr marks a condition that the named identifier refers to a valid,
// dereferenceable pointer. The tag carries the identifier, e.g. `pre:"src"`.
type ValidPtr struct{}

// TagKey is the struct tag key under which conditions are encoded.
const TagKey = "pre"

// HintReason is the reason suggested in diagnostics when one is missing.
// Using it verbatim as a reason is reported as a placeholder.
const HintReason = "why does this hold?"

// PlaceholderReasons lists reasons that are accepted but reported as not
// meaningful yet. Comparison is ASCII case-insensitive.
var PlaceholderReasons = []string{HintReason, "todo", "?"}
