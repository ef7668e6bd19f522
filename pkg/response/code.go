package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 订单模块错误 100xx
	ErrOrderNotFound     = 10001
	ErrInvalidTransition = 10002
	ErrOrderConflict     = 10003

	// 取消/退款工作流错误 200xx
	ErrNotEligible     = 20001
	ErrAlreadyResolved = 20002
	ErrDuplicateRefund = 20003

	// 结算模块错误 300xx
	ErrDuplicatePayout = 30001
	ErrPayoutDisabled  = 30002

	// 支付网关错误 400xx
	ErrGateway = 40001

	// 认证/权限错误 403xx
	ErrTokenInvalid = 40301
	ErrNoPermission = 40302

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
