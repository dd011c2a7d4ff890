package services

// ArtifactFields is the title/summary pair derived from an accepted action
// per the spec §6 artifact derivation table. Metadata-only artifact types
// carry an empty Summary — callers should fall back to Metadata.
type ArtifactFields struct {
	Title   string
	Summary string
}

// DeriveArtifactFields applies the §6 table. actionType and artifactType
// come straight off the agent.action.accepted event payload (the engine
// already computed artifact_type at admission time); payload is the
// caller-supplied body nested under the event's own "payload" key.
func DeriveArtifactFields(actionType, artifactType string, payload map[string]any) ArtifactFields {
	truncate := func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n]
	}
	str := func(key string) string {
		v, _ := payload[key].(string)
		return v
	}

	switch {
	case actionType == "communicate":
		return ArtifactFields{Title: "Communication", Summary: truncate(str("message"), 200)}
	case actionType == "exchange":
		return ArtifactFields{Title: "Exchange", Summary: "Exchange between agents"}
	case actionType == "create" && artifactType == "proposal":
		return ArtifactFields{Title: str("title"), Summary: truncate(str("summary"), 200)}
	case actionType == "create" && artifactType == "diagram":
		return ArtifactFields{Title: str("title")}
	case actionType == "create" && artifactType == "dataset":
		return ArtifactFields{Title: str("title")}
	case actionType == "critique", actionType == "counter_model", actionType == "refusal", actionType == "rederivation":
		summary := str("summary")
		if summary == "" {
			summary = str("reason")
		}
		return ArtifactFields{Title: actionType, Summary: truncate(summary, 200)}
	default:
		return ArtifactFields{Title: actionType}
	}
}
