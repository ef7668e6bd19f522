package response

import (
	"net/http"

	"stylehub/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// HandleError 将业务错误类别映射为统一响应
// 未识别的错误一律按服务器内部错误处理
func HandleError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		Error(c, http.StatusNotFound, ErrOrderNotFound, err.Error())
	case apperr.KindInvalidTransition:
		Error(c, http.StatusUnprocessableEntity, ErrInvalidTransition, err.Error())
	case apperr.KindNotEligible:
		Error(c, http.StatusUnprocessableEntity, ErrNotEligible, err.Error())
	case apperr.KindAlreadyResolved:
		Error(c, http.StatusConflict, ErrAlreadyResolved, err.Error())
	case apperr.KindConflict:
		Error(c, http.StatusConflict, ErrOrderConflict, err.Error())
	case apperr.KindDuplicateRefund:
		Error(c, http.StatusConflict, ErrDuplicateRefund, err.Error())
	case apperr.KindDuplicatePayout:
		Error(c, http.StatusConflict, ErrDuplicatePayout, err.Error())
	case apperr.KindGatewayError:
		Error(c, http.StatusBadGateway, ErrGateway, err.Error())
	default:
		Error(c, http.StatusInternalServerError, ErrServerInternal, err.Error())
	}
}
