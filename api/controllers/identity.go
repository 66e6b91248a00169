package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/api/middleware"
	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

func callerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return id, nil
}

func callerRestaurantID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.RestaurantIDFromContext(r.Context()))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context required")
	}
	return id, nil
}

// callerActor describes the authenticated caller for audit and ownership checks.
func callerActor(r *http.Request) orders.Actor {
	actor := orders.Actor{Role: enums.MemberRole(middleware.RoleFromContext(r.Context()))}
	if id, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
		actor.UserID = id
	}
	if id, err := uuid.Parse(middleware.RestaurantIDFromContext(r.Context())); err == nil {
		actor.RestaurantID = &id
	}
	return actor
}
