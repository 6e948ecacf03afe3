package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/service"
)

const sessionKeyAdmin = "admin"

// ShowLoginPage 渲染登录页面。
func (a *API) ShowLoginPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", loginHTML)
}

// Login 校验管理员口令并建立会话。
func (a *API) Login(c *gin.Context) {
	password := c.PostForm("password")

	if err := a.auth.Login(password, time.Now()); err != nil {
		switch {
		case errors.Is(err, service.ErrLockedOut):
			respondError(c, http.StatusTooManyRequests, "too many failed attempts, try again later")
		case errors.Is(err, service.ErrInvalidPassword):
			respondError(c, http.StatusUnauthorized, "invalid password")
		default:
			respondError(c, http.StatusInternalServerError, "login failed")
		}
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyAdmin, true)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok", "redirect": "/admin/dashboard"})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/admin/login")
}

// AuthRequired 是后台认证中间件。
// API 请求返回 401 JSON，页面请求重定向到登录页。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if admin, ok := session.Get(sessionKeyAdmin).(bool); ok && admin {
			c.Next()
			return
		}

		if strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
			respondError(c, http.StatusUnauthorized, "session_expired")
		} else {
			c.Redirect(http.StatusFound, "/admin/login")
		}
		c.Abort()
	}
}
