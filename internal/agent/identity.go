package agent

// IdentityKind tags how a ModelIdentity resolves to a concrete model ID.
type IdentityKind string

const (
	// IdentityRole resolves through a small named-alias table (sonnet/opus/haiku).
	IdentityRole IdentityKind = "role"
	// IdentitySpec is an explicit, already-concrete model ID.
	IdentitySpec IdentityKind = "spec"
	// IdentityInherit defers to the parent conversation's model.
	IdentityInherit IdentityKind = "inherit"
)

// ModelIdentity replaces a bare model-string field with an explicit
// addressing mode, so "inherit" isn't just a magic string compared against
// everywhere it's read.
type ModelIdentity struct {
	Kind  IdentityKind
	Alias string // set when Kind == IdentityRole
	Spec  string // set when Kind == IdentitySpec
}

// roleAliases maps the short names agent configs use for Model to concrete
// provider model IDs. Kept in sync with the model list anthropic.client
// advertises via ListModels.
var roleAliases = map[string]string{
	"sonnet": "claude-sonnet-4-5@20250929",
	"opus":   "claude-opus-4-5@20251101",
	"haiku":  "claude-haiku-3-5@20241022",
}

// ParseModelIdentity interprets an AgentConfig.Model string. Empty or
// "inherit" means inherit the parent's model; a known alias resolves
// through roleAliases; anything else is treated as an already-concrete
// model ID.
func ParseModelIdentity(raw string) ModelIdentity {
	if raw == "" || raw == "inherit" {
		return ModelIdentity{Kind: IdentityInherit}
	}
	if _, ok := roleAliases[raw]; ok {
		return ModelIdentity{Kind: IdentityRole, Alias: raw}
	}
	return ModelIdentity{Kind: IdentitySpec, Spec: raw}
}

// RequiresParent reports whether resolving this identity needs a parent
// model ID to fall back on.
func (m ModelIdentity) RequiresParent() bool {
	return m.Kind == IdentityInherit
}

// Resolve turns the identity into a concrete model ID, given the parent
// conversation's model (used for IdentityInherit) and a fallback used when
// neither the identity nor the parent supplies one.
func (m ModelIdentity) Resolve(parentModelID, fallback string) string {
	switch m.Kind {
	case IdentitySpec:
		return m.Spec
	case IdentityRole:
		if id, ok := roleAliases[m.Alias]; ok {
			return id
		}
		return fallback
	case IdentityInherit:
		if parentModelID != "" {
			return parentModelID
		}
		return fallback
	default:
		return fallback
	}
}
