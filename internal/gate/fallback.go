package gate

import "html/template"

// Verbosity selects the default denial panel layout.
type Verbosity int

// Panel layouts.
const (
	// VerbosityDefault is a boxed alert.
	VerbosityDefault Verbosity = iota
	// VerbosityCompact is a single short block.
	VerbosityCompact
	// VerbosityDetailed is a full card with guidance.
	VerbosityDetailed
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityCompact:
		return "compact"
	case VerbosityDetailed:
		return "detailed"
	default:
		return "default"
	}
}

// ParseVerbosity maps "compact", "default" and "detailed". Anything else is
// the default layout.
func ParseVerbosity(raw string) Verbosity {
	switch raw {
	case "compact":
		return VerbosityCompact
	case "detailed":
		return VerbosityDetailed
	default:
		return VerbosityDefault
	}
}

// FallbackKind tags the Fallback variant.
type FallbackKind int

// Fallback variants, in precedence order after the zero value.
const (
	// FallbackPanel is the default denial panel; it is the zero value.
	FallbackPanel FallbackKind = iota
	FallbackNode
	FallbackNone
	FallbackMinimal
)

// Fallback is what replaces denied content. Build it with Node, NoRender,
// Minimal or Panel.
type Fallback struct {
	kind      FallbackKind
	node      template.HTML
	verbosity Verbosity
}

// Node uses html verbatim.
func Node(html template.HTML) Fallback {
	return Fallback{kind: FallbackNode, node: html}
}

// NoRender hides the feature entirely.
func NoRender() Fallback {
	return Fallback{kind: FallbackNone}
}

// Minimal renders a one-line denial marker.
func Minimal() Fallback {
	return Fallback{kind: FallbackMinimal}
}

// Panel renders the default denial panel at verbosity v.
func Panel(v Verbosity) Fallback {
	return Fallback{kind: FallbackPanel, verbosity: v}
}

// Kind returns the variant tag.
func (f Fallback) Kind() FallbackKind { return f.kind }

// HTML returns the caller node for FallbackNode.
func (f Fallback) HTML() template.HTML { return f.node }

// Verbosity returns the panel layout for FallbackPanel.
func (f Fallback) Verbosity() Verbosity { return f.verbosity }

// ParseFallback maps the wire sentinels "none" and "minimal"; any other
// value is the default panel at the given verbosity.
func ParseFallback(raw string, v Verbosity) Fallback {
	switch raw {
	case "none":
		return NoRender()
	case "minimal":
		return Minimal()
	default:
		return Panel(v)
	}
}
