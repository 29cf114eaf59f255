package models

import (
	"encoding/json"
	"time"
)

// 角色常量。能力检查时按 user < curator < admin 全序比较。
const (
	RoleUser    = "user"
	RoleCurator = "curator"
	RoleAdmin   = "admin"
)

// RoleRank 返回角色在全序中的等级，未知角色返回0
func RoleRank(role string) int {
	switch role {
	case RoleUser:
		return 1
	case RoleCurator:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// UserProfile 用户档案表
type UserProfile struct {
	UserID       uint      `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:200;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;default:user;not null" json:"role"`
	IsActive     bool      `gorm:"column:is_active;default:true;not null" json:"is_active"`
	AssignedKBs  string    `gorm:"type:text;column:assigned_kbs" json:"-"` // JSON数组，curator的知识库范围
	CreateTime   time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime   time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}

// AssignedKBList 反序列化curator的知识库分配列表
func (u *UserProfile) AssignedKBList() []string {
	if u.AssignedKBs == "" {
		return nil
	}
	var kbs []string
	if err := json.Unmarshal([]byte(u.AssignedKBs), &kbs); err != nil {
		return nil
	}
	return kbs
}

// SetAssignedKBs 序列化知识库分配列表
func (u *UserProfile) SetAssignedKBs(kbs []string) {
	if len(kbs) == 0 {
		u.AssignedKBs = ""
		return
	}
	data, err := json.Marshal(kbs)
	if err != nil {
		return
	}
	u.AssignedKBs = string(data)
}
