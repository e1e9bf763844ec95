package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/campusrec/campusrec/internal/rbac"
)

// CatalogReader is the store surface the catalog verifier inspects.
type CatalogReader interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	ListPermissionsFor(ctx context.Context, roleID int64) ([]rbac.Permission, error)
}

// CatalogCLI compares the persisted catalog with the compiled one.
type CatalogCLI struct {
	store CatalogReader
}

// NewCatalogCLI wires the verifier to a store.
func NewCatalogCLI(store CatalogReader) (*CatalogCLI, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog cli: store not configured")
	}
	return &CatalogCLI{store: store}, nil
}

// CatalogVerifyOptions defines available flags for the catalog verify command.
type CatalogVerifyOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CatalogVerifySummary describes the JSON response for catalog verify.
type CatalogVerifySummary struct {
	OK                 bool     `json:"ok"`
	MissingRoles       []string `json:"missing_roles"`
	MissingPermissions []string `json:"missing_permissions"`
	UnknownRoles       []string `json:"unknown_roles"`
	UnknownPermissions []string `json:"unknown_permissions"`
	RolesWithoutGrants []string `json:"roles_without_grants"`
}

// Verify computes the catalog drift.
func (c *CatalogCLI) Verify(ctx context.Context) (CatalogVerifySummary, error) {
	roles, err := c.store.ListRoles(ctx)
	if err != nil {
		return CatalogVerifySummary{}, err
	}
	perms, err := c.store.ListPermissions(ctx)
	if err != nil {
		return CatalogVerifySummary{}, err
	}

	summary := CatalogVerifySummary{
		MissingRoles:       []string{},
		MissingPermissions: []string{},
		UnknownRoles:       []string{},
		UnknownPermissions: []string{},
		RolesWithoutGrants: []string{},
	}
	storedRoles := rbac.RoleNamesOf(roles)
	for _, name := range rbac.RoleNames() {
		if !slices.Contains(storedRoles, name) {
			summary.MissingRoles = append(summary.MissingRoles, string(name))
		}
	}
	for _, role := range roles {
		if !role.Name.Valid() {
			summary.UnknownRoles = append(summary.UnknownRoles, string(role.Name))
			continue
		}
		granted, err := c.store.ListPermissionsFor(ctx, role.ID)
		if err != nil {
			return CatalogVerifySummary{}, err
		}
		if len(granted) == 0 {
			summary.RolesWithoutGrants = append(summary.RolesWithoutGrants, string(role.Name))
		}
	}
	storedPerms := rbac.PermissionNamesOf(perms)
	for _, name := range rbac.PermissionNames() {
		if !slices.Contains(storedPerms, name) {
			summary.MissingPermissions = append(summary.MissingPermissions, string(name))
		}
	}
	for _, name := range storedPerms {
		if !name.Valid() {
			summary.UnknownPermissions = append(summary.UnknownPermissions, string(name))
		}
	}
	summary.OK = len(summary.MissingRoles) == 0 && len(summary.MissingPermissions) == 0 &&
		len(summary.UnknownRoles) == 0 && len(summary.UnknownPermissions) == 0 &&
		len(summary.RolesWithoutGrants) == 0
	return summary, nil
}

// VerifyCommand executes the catalog verify workflow and prints the outcome.
// It exits 10 when drift is found.
func (c *CatalogCLI) VerifyCommand(ctx context.Context, opts CatalogVerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	summary, err := c.Verify(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "catalog verify: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "catalog verify: encode json: %v\n", err)
			return 1
		}
	} else {
		renderVerifyHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func renderVerifyHuman(out io.Writer, summary CatalogVerifySummary) {
	if summary.OK {
		_, _ = fmt.Fprintln(out, "catalog in sync")
		return
	}
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		_, _ = fmt.Fprintf(out, "%s:\n", title)
		for _, item := range items {
			_, _ = fmt.Fprintf(out, "  - %s\n", item)
		}
	}
	section("missing roles", summary.MissingRoles)
	section("missing permissions", summary.MissingPermissions)
	section("unknown roles", summary.UnknownRoles)
	section("unknown permissions", summary.UnknownPermissions)
	section("roles without grants", summary.RolesWithoutGrants)
}
