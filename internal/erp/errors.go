package erp

import (
	"errors"
	"fmt"
)

// AuthError 凭证获取或刷新失败，或刷新后仍返回 401。
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("erp auth %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("erp auth %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError ERP 返回了非鉴权类的失败（非 2xx 或业务 status 非 success）。
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("erp %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("erp %s returned failure: %s", e.Endpoint, e.Message)
}

// NetworkError 没有拿到响应，包括超时和熔断拒绝。
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("erp %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout 报告底层错误是否为超时。
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// unauthorizedError 仅在客户端内部流转，用于触发一次重新认证。
type unauthorizedError struct {
	endpoint string
	status   int
}

func (e *unauthorizedError) Error() string {
	return fmt.Sprintf("erp %s rejected credential (status %d)", e.endpoint, e.status)
}

func isUnauthorized(err error) bool {
	var u *unauthorizedError
	return errors.As(err, &u)
}

// IsFetchError 判断 err 是否属于拉取阶段的错误分类。
func IsFetchError(err error) bool {
	var (
		a *AuthError
		u *UpstreamError
		n *NetworkError
	)
	return errors.As(err, &a) || errors.As(err, &u) || errors.As(err, &n)
}
