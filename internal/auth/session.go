package auth

import (
	"github.com/aihub/curation-go/internal/models"
)

// Session 一次已验证请求的调用者身份。所有需要授权的业务操作都显式接收Session，
// 不依赖任何隐式的"当前会话"查找。
type Session struct {
	UserID      uint
	Username    string
	Role        string
	IsActive    bool
	AssignedKBs []string
}

// NewSession 从用户档案构造Session。角色与激活状态来自数据库行，不来自token。
func NewSession(user *models.UserProfile) *Session {
	return &Session{
		UserID:      user.UserID,
		Username:    user.Username,
		Role:        user.Role,
		IsActive:    user.IsActive,
		AssignedKBs: user.AssignedKBList(),
	}
}

// IsRole 能力检查：角色全序 user < curator < admin，实际等级不低于要求即通过。
// 非激活账号不满足任何角色检查，包括admin。
func (s *Session) IsRole(required string) bool {
	if s == nil || !s.IsActive {
		return false
	}
	actual := models.RoleRank(s.Role)
	want := models.RoleRank(required)
	if actual == 0 || want == 0 {
		return false
	}
	return actual >= want
}

// IsAdmin admin能力检查
func (s *Session) IsAdmin() bool {
	return s.IsRole(models.RoleAdmin)
}

// CanAccessKB 知识库范围检查。admin不受范围限制；curator仅限分配的知识库；
// 其余角色一律拒绝。这是读取时的过滤条件，不是工作流状态。
func (s *Session) CanAccessKB(kbID string) bool {
	if s == nil || !s.IsActive {
		return false
	}
	if models.RoleRank(s.Role) >= models.RoleRank(models.RoleAdmin) {
		return true
	}
	if models.RoleRank(s.Role) < models.RoleRank(models.RoleCurator) {
		return false
	}
	for _, assigned := range s.AssignedKBs {
		if assigned == kbID {
			return true
		}
	}
	return false
}

// ScopedKBs 返回会话可见的知识库集合。all为true表示不过滤（admin）；
// 否则以kbs为准，空集合就是什么都看不到，不能当作不过滤使用。
func (s *Session) ScopedKBs() (kbs []string, all bool) {
	if s == nil || !s.IsActive {
		return nil, false
	}
	if s.IsAdmin() {
		return nil, true
	}
	return s.AssignedKBs, false
}
