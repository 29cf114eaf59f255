package auth

import (
	"testing"
	"time"

	"github.com/aihub/curation-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSession_IsRoleOrdering(t *testing.T) {
	admin := &Session{Role: models.RoleAdmin, IsActive: true}
	curator := &Session{Role: models.RoleCurator, IsActive: true}
	user := &Session{Role: models.RoleUser, IsActive: true}

	// 角色全序：高角色满足低角色的检查
	assert.True(t, admin.IsRole(models.RoleUser))
	assert.True(t, admin.IsRole(models.RoleCurator))
	assert.True(t, admin.IsRole(models.RoleAdmin))

	assert.True(t, curator.IsRole(models.RoleUser))
	assert.True(t, curator.IsRole(models.RoleCurator))
	assert.False(t, curator.IsRole(models.RoleAdmin))

	assert.True(t, user.IsRole(models.RoleUser))
	assert.False(t, user.IsRole(models.RoleCurator))
}

func TestSession_InactiveFailsAllChecks(t *testing.T) {
	// 停用账号不满足任何角色检查，admin也不例外
	inactive := &Session{Role: models.RoleAdmin, IsActive: false, AssignedKBs: []string{"cardiology"}}

	assert.False(t, inactive.IsRole(models.RoleUser))
	assert.False(t, inactive.IsRole(models.RoleAdmin))
	assert.False(t, inactive.IsAdmin())
	assert.False(t, inactive.CanAccessKB("cardiology"))
	kbs, all := inactive.ScopedKBs()
	assert.Empty(t, kbs)
	assert.False(t, all)
}

func TestSession_UnknownRoleFails(t *testing.T) {
	weird := &Session{Role: "superuser", IsActive: true}
	assert.False(t, weird.IsRole(models.RoleUser))
	assert.False(t, weird.IsRole("superuser"))
}

func TestSession_NilSafe(t *testing.T) {
	var sess *Session
	assert.False(t, sess.IsRole(models.RoleUser))
	assert.False(t, sess.CanAccessKB("cardiology"))
}

func TestSession_CanAccessKB(t *testing.T) {
	admin := &Session{Role: models.RoleAdmin, IsActive: true}
	curator := &Session{Role: models.RoleCurator, IsActive: true, AssignedKBs: []string{"cardiology", "oncology"}}
	user := &Session{Role: models.RoleUser, IsActive: true, AssignedKBs: []string{"cardiology"}}

	// admin不受范围限制
	assert.True(t, admin.CanAccessKB("anything"))

	// curator仅限分配的知识库
	assert.True(t, curator.CanAccessKB("cardiology"))
	assert.False(t, curator.CanAccessKB("neurology"))

	// 普通用户即便有分配也不具备curator能力
	assert.False(t, user.CanAccessKB("cardiology"))
}

func TestSession_ScopedKBs(t *testing.T) {
	admin := &Session{Role: models.RoleAdmin, IsActive: true}
	curator := &Session{Role: models.RoleCurator, IsActive: true, AssignedKBs: []string{"cardiology"}}
	unassigned := &Session{Role: models.RoleCurator, IsActive: true}

	// 只有admin拿到all=true
	kbs, all := admin.ScopedKBs()
	assert.Nil(t, kbs)
	assert.True(t, all)

	kbs, all = curator.ScopedKBs()
	assert.Equal(t, []string{"cardiology"}, kbs)
	assert.False(t, all)

	// 没有分配的curator是空集合，不是不过滤
	kbs, all = unassigned.ScopedKBs()
	assert.Empty(t, kbs)
	assert.False(t, all)
}

func TestNewSession_FromUserProfile(t *testing.T) {
	user := &models.UserProfile{
		UserID:   7,
		Username: "curator-a",
		Role:     models.RoleCurator,
		IsActive: true,
	}
	user.SetAssignedKBs([]string{"oncology"})

	sess := NewSession(user)
	assert.Equal(t, uint(7), sess.UserID)
	assert.Equal(t, models.RoleCurator, sess.Role)
	assert.Equal(t, []string{"oncology"}, sess.AssignedKBs)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "curation-service", time.Hour)

	token, err := svc.GenerateToken(42, "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTService_RejectsTamperedToken(t *testing.T) {
	svc := NewJWTService("test-secret", "curation-service", time.Hour)
	other := NewJWTService("other-secret", "curation-service", time.Hour)

	token, err := svc.GenerateToken(42, "alice")
	assert.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}
