package message

// Built-in discovery methods, registered on every server under BuiltinVersion.
const (
	HelpMethod     = "_help"
	InspectMethod  = "_inspect"
	BuiltinVersion = "built-in"
)

const (
	HelpTypeOptions  = "options"
	HelpTypeVersions = "versions"
	HelpTypeMethod   = "method"
)

// MethodDescriptor describes one registered (method, version) pair.
type MethodDescriptor struct {
	Method      string `json:"method"`
	Version     string `json:"version"`
	Description string `json:"desc"`
}

// Catalogue is the result of InspectMethod: every method a service exposes,
// built-ins included.
type Catalogue struct {
	Service     string             `json:"service"`
	Description string             `json:"description"`
	Methods     []MethodDescriptor `json:"methods"`
}

// Versions returns the descriptors registered under version, in catalogue order.
func (c *Catalogue) Versions(version string) []MethodDescriptor {
	var out []MethodDescriptor
	for _, m := range c.Methods {
		if m.Version == version {
			out = append(out, m)
		}
	}
	return out
}

// HelpOptions answers a HelpMethod call without a known method name.
type HelpOptions struct {
	HelpType    string   `json:"help_type"`
	Service     string   `json:"service"`
	Description string   `json:"description"`
	Methods     []string `json:"methods"`
}

// HelpVersions answers a HelpMethod call naming a method but no version.
type HelpVersions struct {
	HelpType string   `json:"help_type"`
	Method   string   `json:"method"`
	Versions []string `json:"versions"`
}

// HelpMethodInfo answers a HelpMethod call naming both method and version.
type HelpMethodInfo struct {
	HelpType    string `json:"help_type"`
	Method      string `json:"method"`
	Version     string `json:"version"`
	Description string `json:"desc"`
}
