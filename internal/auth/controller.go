package auth

import (
	"errors"
	"net/http"
	"regexp"

	"chatapi/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// loginIDPattern: lowercase letters and digits only. Length is enforced
// separately so the two failure modes get their own messages.
var loginIDPattern = regexp.MustCompile(`^[a-z0-9]+$`)

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	v := validator.New()
	v.RegisterValidation("lowercase_alnum", func(fl validator.FieldLevel) bool {
		return loginIDPattern.MatchString(fl.Field().String())
	})
	return &Controller{
		service:   service,
		validator: v,
	}
}

func (c *Controller) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "邮箱、密码和登录ID不能为空", "Invalid request body")
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		msg := registerValidationMessage(err)
		response.RespondError(ctx, http.StatusBadRequest, msg, msg)
		return
	}

	resp, err := c.service.Register(ctx.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrLoginIDTaken):
			response.RespondError(ctx, http.StatusBadRequest, "该登录ID已被使用", "该登录ID已被使用")
		case errors.Is(err, ErrEmailTaken):
			response.RespondError(ctx, http.StatusConflict, "该邮箱已被注册", "该邮箱已被注册")
		default:
			response.RespondError(ctx, http.StatusInternalServerError, "服务器内部错误", "服务器内部错误")
		}
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "注册成功", resp)
}

func (c *Controller) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "用户名和密码不能为空", "Invalid request body")
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "用户名和密码不能为空", "用户名和密码不能为空")
		return
	}

	resp, err := c.service.Login(ctx.Request.Context(), &req, ctx.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.RespondError(ctx, http.StatusBadRequest, "用户名或密码错误", "用户名或密码错误")
		default:
			response.RespondError(ctx, http.StatusInternalServerError, "服务器内部错误", "服务器内部错误")
		}
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "登录成功", resp)
}

func (c *Controller) RefreshToken(ctx *gin.Context) {
	var req RefreshTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "缺少 refreshToken", "Invalid request body")
		return
	}

	if err := c.validator.Struct(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "缺少 refreshToken", "缺少 refreshToken")
		return
	}

	pair, err := c.service.RefreshToken(ctx.Request.Context(), req.RefreshToken, ctx.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			// The stable category is machine-readable; clients branch on it
			// to decide between re-login and retry.
			response.RespondError(ctx, http.StatusUnauthorized, "expired", "Token 已过期")
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrRefreshReuse), errors.Is(err, ErrUserNotFound):
			response.RespondError(ctx, http.StatusUnauthorized, "invalid", "Token 无效")
		default:
			response.RespondError(ctx, http.StatusInternalServerError, "服务器内部错误", "服务器内部错误")
		}
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "刷新成功", pair)
}

func (c *Controller) Logout(ctx *gin.Context) {
	var req LogoutRequest
	ctx.ShouldBindJSON(&req) // Optional body

	if err := c.service.Logout(ctx.Request.Context(), req.RefreshToken); err != nil {
		response.RespondError(ctx, http.StatusInternalServerError, "服务器内部错误", "服务器内部错误")
		return
	}

	response.RespondJSON(ctx, http.StatusOK, "登出成功", nil)
}

func (c *Controller) GetMe(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondError(ctx, http.StatusUnauthorized, "Token 无效", "User not authenticated")
		return
	}

	email, _ := ctx.Get("user_email")
	role, _ := ctx.Get("user_role")

	userData := map[string]interface{}{
		"username": userID,
		"email":    email,
		"role":     role,
	}

	response.RespondJSON(ctx, http.StatusOK, "获取成功", userData)
}

// registerValidationMessage maps the first failed rule to its user-facing
// message, mirroring the order the checks are documented in.
func registerValidationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return "邮箱、密码和登录ID不能为空"
	}

	fe := vErrs[0]
	switch {
	case fe.Tag() == "required":
		return "邮箱、密码和登录ID不能为空"
	case fe.Field() == "Email":
		return "邮箱格式不正确"
	case fe.Field() == "Password":
		return "密码长度至少为 6 个字符"
	case fe.Field() == "LoginID" && fe.Tag() == "lowercase_alnum":
		return "登录ID只能包含小写字母和数字"
	case fe.Field() == "LoginID":
		return "登录ID长度必须在 4-32 个字符之间"
	default:
		return "请求参数不正确"
	}
}
