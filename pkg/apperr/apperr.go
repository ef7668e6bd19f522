package apperr

import (
	"errors"
	"fmt"
)

// Kind 业务错误类别
// 工作流的每种失败方式对应一个类别，handler 据此映射业务码和 HTTP 状态
type Kind int

const (
	// KindInvalidTransition 当前状态不允许该状态变更
	KindInvalidTransition Kind = iota + 1
	// KindNotEligible 业务前置条件不满足（如未送达就申请退款）
	KindNotEligible
	// KindAlreadyResolved 请求已被处理过，不能重复处理
	KindAlreadyResolved
	// KindConflict 并发修改落败（版本号 CAS 失败）
	KindConflict
	// KindGatewayError 外部支付网关失败，可重试
	KindGatewayError
	// KindDuplicatePayout 打款幂等键重复
	KindDuplicatePayout
	// KindDuplicateRefund 退款幂等键重复
	KindDuplicateRefund
	// KindNotFound 记录不存在
	KindNotFound
)

// Error 带类别的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建业务错误
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf 创建带格式化消息的业务错误
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 提取错误类别，非业务错误返回 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is 判断错误是否属于某类别
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
