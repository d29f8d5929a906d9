package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func OrganisationID(id uuid.UUID) slog.Attr { return idAttr("organisation_id", id) }

func ProjectID(id uuid.UUID) slog.Attr { return idAttr("project_id", id) }

func EnvironmentID(id uuid.UUID) slog.Attr { return idAttr("environment_id", id) }

func FeatureID(id uuid.UUID) slog.Attr { return idAttr("feature_id", id) }

func IdentityID(id uuid.UUID) slog.Attr { return idAttr("identity_id", id) }

func FeatureStateID(id uuid.UUID) slog.Attr { return idAttr("feature_state_id", id) }

// idAttr drops nil ids so optional references do not clutter records.
func idAttr(key string, id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String(key, id.String())
}
