package persona

// NestedConfigKey marks the wrapper shape of a session config.
const NestedConfigKey = "sessionConfig"

// Session config fields written by Bind.
const (
	FieldVoice           = "voice"
	FieldInstructionText = "instructionText"
	FieldMetadata        = "metadata"
)

// Bind writes p into base, keeping whichever shape base has: when base holds
// an object under NestedConfigKey the persona goes there, otherwise into base
// itself. Every other field is carried over unchanged. base and its nested
// object are copied, never modified.
func Bind(base map[string]any, p ComposedPersona) map[string]any {
	out := make(map[string]any, len(base)+3)
	for k, v := range base {
		out[k] = v
	}

	if raw, present := base[NestedConfigKey]; present {
		switch nested := raw.(type) {
		case map[string]any:
			inner := make(map[string]any, len(nested)+3)
			for k, v := range nested {
				inner[k] = v
			}
			writePersona(inner, p)
			out[NestedConfigKey] = inner
			return out
		case nil:
			inner := make(map[string]any, 3)
			writePersona(inner, p)
			out[NestedConfigKey] = inner
			return out
		}
	}

	writePersona(out, p)
	return out
}

func writePersona(dst map[string]any, p ComposedPersona) {
	dst[FieldVoice] = p.Voice
	dst[FieldInstructionText] = p.InstructionText
	dst[FieldMetadata] = p.Metadata.Map()
}
