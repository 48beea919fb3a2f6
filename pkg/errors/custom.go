package errors

/*
	内置常用错误码
*/

var (
	// ErrServer 服务器错误
	ErrServer = New(1000, 500, "Internal server error")
	// ErrBadRequest 客户端请求错误
	ErrBadRequest = New(1001, 400, "Bad request")
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, 401, "Invalid API KEY")
	// ErrForbidden 禁止访问
	ErrForbidden = New(1003, 403, "Forbidden")
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, 404, "Api not found")
	// ErrNoData 查询无数据
	ErrNoData = New(1005, 404, "No data found")
	// ErrValidation 参数校验失败
	ErrValidation = New(1006, 400, "Validation failed")
)
