package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

type environmentCtxKey struct{}

// EnvironmentFromContext returns the environment resolved from the request's
// API key.
func EnvironmentFromContext(ctx context.Context) (*flags.Environment, bool) {
	env, ok := ctx.Value(environmentCtxKey{}).(*flags.Environment)
	return env, ok
}

func (a *API) environmentKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(EnvironmentKeyHeader)
		if key == "" {
			a.writeError(w, r, errMissingKey)
			return
		}
		env, err := a.q.EnvironmentByAPIKey(r.Context(), key)
		if err != nil {
			if errors.Is(err, flags.ErrNotFound) {
				err = errors.Join(errInvalidKey, err)
			}
			a.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), environmentCtxKey{}, env)))
	})
}

func (a *API) environmentFlags(w http.ResponseWriter, r *http.Request) {
	env, _ := EnvironmentFromContext(r.Context())
	states, err := a.q.ListEnvironmentStates(r.Context(), env.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeList(w, r, states)
}

func (a *API) identityFlags(w http.ResponseWriter, r *http.Request) {
	env, _ := EnvironmentFromContext(r.Context())
	identityID, err := pathID(r, "identityID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	identity, err := a.q.GetIdentity(r.Context(), identityID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	// Identities of other environments are invisible to this key.
	if identity.EnvironmentID != env.ID {
		a.writeError(w, r, errors.Join(flags.ErrNotFound, errors.New("identity not found")))
		return
	}

	states, err := a.q.ListEffectiveStates(r.Context(), identity.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeList(w, r, states)
}

func (a *API) featureValue(w http.ResponseWriter, r *http.Request) {
	env, _ := EnvironmentFromContext(r.Context())
	featureID, err := pathID(r, "featureID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var identityID uuid.NullUUID
	if raw := r.URL.Query().Get("identity"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			a.writeError(w, r, errors.Join(flags.ErrValidation, errors.New("identity must be a uuid")))
			return
		}
		identityID = uuid.NullUUID{UUID: id, Valid: true}
	}

	state, err := a.q.GetEffectiveValue(r.Context(), featureID, env.ID, identityID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, JSONResponse{Data: state})
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, errors.Join(flags.ErrValidation, errors.New(param+" must be a uuid"))
	}
	return id, nil
}
