package service_test

import (
	"context"
	"testing"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/service"
	"github.com/bitfantasy/repairhub/internal/repair/testutil"
)

func TestResolveDefaultDeny(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedRole(t, db, "role-1", "technician", "Technician")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)

	// 没有权限行：一切拒绝
	set, err := svc.Permission.Resolve(context.Background(), []string{"role-1"}, "br-1", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Has(service.CapView) || set.Has(service.CapUpdate) {
		t.Errorf("Expected empty capability set, got %v", set)
	}

	err = svc.Permission.Authorize(context.Background(), []string{"role-1"}, "br-1", "st-1", service.CapView)
	if service.KindOf(err) != service.KindPermissionDenied {
		t.Errorf("Expected permission_denied, got %v", err)
	}
}

func TestResolveMergesAcrossRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedRole(t, db, "role-view", "viewer", "Viewer")
	testutil.SeedRole(t, db, "role-edit", "editor", "Editor")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	testutil.SeedPermission(t, db, &entity.StatusPermission{
		RoleID: "role-view", StatusID: "st-1", CanView: true,
	})
	testutil.SeedPermission(t, db, &entity.StatusPermission{
		RoleID: "role-edit", StatusID: "st-1", CanUpdate: true,
	})

	// 任一角色授予即放行
	set, err := svc.Permission.Resolve(context.Background(), []string{"role-view", "role-edit"}, "br-1", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !set.Has(service.CapView) {
		t.Errorf("Expected can_view from role-view")
	}
	if !set.Has(service.CapUpdate) {
		t.Errorf("Expected can_update from role-edit")
	}
	if set.Has(service.CapAdd) {
		t.Errorf("can_add granted by neither role, got %v", set)
	}
}

func TestResolveBranchMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedBranch(t, db, "br-2", "Yunusobod")
	testutil.SeedRole(t, db, "role-1", "technician", "Technician")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)
	testutil.SeedPermission(t, db, testutil.FullPermission("role-1", "st-1"))

	// 状态属于别的网点：即使有权限行也全部拒绝
	set, err := svc.Permission.Resolve(context.Background(), []string{"role-1"}, "br-2", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Has(service.CapView) {
		t.Errorf("Expected empty set for cross-branch status, got %v", set)
	}
}

func TestSetPermissionRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.SetupServices(t, db)
	testutil.SeedBranch(t, db, "br-1", "Chilonzor")
	testutil.SeedRole(t, db, "role-1", "technician", "Technician")
	testutil.SeedStatus(t, db, "st-1", "br-1", "Yangi", 1)

	input := &service.PermissionInput{RoleID: "role-1", CanView: true, CanComment: true}
	if err := svc.Status.SetPermission(context.Background(), "st-1", input); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}

	set, err := svc.Permission.Resolve(context.Background(), []string{"role-1"}, "br-1", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !set.Has(service.CapView) || !set.Has(service.CapComment) {
		t.Errorf("Expected view+comment, got %v", set)
	}

	// 覆盖写收回能力
	input = &service.PermissionInput{RoleID: "role-1", CanView: true}
	if err := svc.Status.SetPermission(context.Background(), "st-1", input); err != nil {
		t.Fatalf("SetPermission overwrite: %v", err)
	}
	set, err = svc.Permission.Resolve(context.Background(), []string{"role-1"}, "br-1", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Has(service.CapComment) {
		t.Errorf("Expected can_comment revoked after overwrite")
	}

	// 删除权限行回到默认拒绝
	if err := svc.Status.DeletePermission(context.Background(), "st-1", "role-1"); err != nil {
		t.Fatalf("DeletePermission: %v", err)
	}
	set, err = svc.Permission.Resolve(context.Background(), []string{"role-1"}, "br-1", "st-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Has(service.CapView) {
		t.Errorf("Expected default deny after permission row deleted")
	}
}
