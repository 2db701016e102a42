package middleware

import (
	"github.com/BerniceZTT/leadops/utils"

	"github.com/gin-gonic/gin"
)

// ErrorMapper 把业务错误转换为 *utils.ApiError
type ErrorMapper func(err error) error

// ErrorHandler 全局错误处理中间件，处理器通过 c.Error 上报的最后一个错误统一输出
func ErrorHandler(mapper ErrorMapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// 如果已经存在响应，不重复处理
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if mapper != nil {
			err = mapper(err)
		}
		utils.HandleError(c, err)
	}
}
