package controllers

import (
	"github.com/aihub/curation-go/internal/services"
)

// AuthController 注册与登录
type AuthController struct {
	BaseController
	users *services.UserService
}

func (c *AuthController) Prepare() {
	c.users = registry.Users
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Register 注册新用户
func (c *AuthController) Register() {
	var req registerRequest
	if !c.bindJSON(&req) {
		return
	}

	user, err := c.users.Register(c.Ctx.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"user_id":  user.UserID,
		"username": user.Username,
		"role":     user.Role,
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login 登录并签发token
func (c *AuthController) Login() {
	var req loginRequest
	if !c.bindJSON(&req) {
		return
	}

	token, user, err := c.users.Login(c.Ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"token":    token,
		"user_id":  user.UserID,
		"username": user.Username,
		"role":     user.Role,
	})
}
