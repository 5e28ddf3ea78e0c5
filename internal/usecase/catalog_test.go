package usecase

import (
	"context"
	"testing"
)

func TestCatalogEndpointLifecycle(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	scope, _ := env.registerOwner(t, "owner@acme.io", "Acme")

	created, err := env.catalog.RegisterEndpoint(ctx, scope, RegisterEndpointInput{Method: "get", Path: " /v1/users ", Description: "List users"})
	if err != nil {
		t.Fatalf("RegisterEndpoint: %v", err)
	}
	if created.Method != "GET" || created.Path != "/v1/users" || created.OrganizationID != scope.OrganizationID {
		t.Fatalf("unexpected endpoint: %+v", created)
	}

	_, err = env.catalog.RegisterEndpoint(ctx, scope, RegisterEndpointInput{Method: "GET", Path: "/v1/users"})
	assertKind(t, err, ErrValidationFailed)

	_, err = env.catalog.RegisterEndpoint(ctx, scope, RegisterEndpointInput{Method: "FETCH", Path: "/v1/users"})
	assertKind(t, err, ErrValidationFailed)

	_, err = env.catalog.RegisterEndpoint(ctx, scope, RegisterEndpointInput{Method: "POST", Path: "v1/users"})
	assertKind(t, err, ErrValidationFailed)

	updated, err := env.catalog.UpdateDescription(ctx, scope, created.ID, UpdateDescriptionInput{Description: "Lists every user"})
	if err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}
	if updated.Description != "Lists every user" {
		t.Fatalf("description not updated: %+v", updated)
	}

	endpoints, err := env.catalog.ListEndpoints(ctx, scope)
	if err != nil {
		t.Fatalf("ListEndpoints: %v", err)
	}
	if len(endpoints) != 1 || endpoints[0].Description != "Lists every user" {
		t.Fatalf("unexpected catalog: %+v", endpoints)
	}
}

func TestCatalogUpdateDescriptionIsOrganizationScoped(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)
	ctx := context.Background()
	acme, _ := env.registerOwner(t, "owner@acme.io", "Acme")
	globex, _ := env.registerOwner(t, "owner@globex.io", "Globex")

	created, err := env.catalog.RegisterEndpoint(ctx, acme, RegisterEndpointInput{Method: "POST", Path: "/v1/orders"})
	if err != nil {
		t.Fatalf("RegisterEndpoint: %v", err)
	}

	_, err = env.catalog.UpdateDescription(ctx, globex, created.ID, UpdateDescriptionInput{Description: "hijack"})
	assertKind(t, err, ErrNotFound)

	_, err = env.catalog.UpdateDescription(ctx, acme, "missing", UpdateDescriptionInput{Description: "x"})
	assertKind(t, err, ErrNotFound)

	_, err = env.catalog.UpdateDescription(ctx, acme, created.ID, UpdateDescriptionInput{Description: "   "})
	assertKind(t, err, ErrValidationFailed)

	endpoints, _ := env.catalog.ListEndpoints(ctx, globex)
	if len(endpoints) != 0 {
		t.Fatalf("expected empty catalog for other organization, got %+v", endpoints)
	}
}

func TestCatalogRequiresOrganizationScope(t *testing.T) {
	env := newTestEnv(t, StrategyOrganizationOwner)

	_, err := env.catalog.ListMembers(context.Background(), AccessScope{})
	assertKind(t, err, ErrUnauthorized)
	_, err = env.catalog.ListEndpoints(context.Background(), AccessScope{})
	assertKind(t, err, ErrUnauthorized)
}
