package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/datafeed/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Ok 成功响应
func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Fail 失败响应
// 业务错误按其携带的 HTTP 状态码与业务码返回，未知错误统一按服务器错误处理
func Fail(c *gin.Context, err error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.ErrServer
	}
	c.JSON(e.HttpCode, Response{
		Success: false,
		Code:    e.Code,
		Message: e.Message,
	})
}
