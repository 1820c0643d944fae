package apdo

import (
	"github.com/makryl/apdo/internal/errs"
)

// 通过桥接的方式将内部错误导出外部
// 调用方用 errors.Is 分支, 不要去匹配错误文本
var (
	ErrNoTable          = errs.ErrNoTable
	ErrCompositeKey     = errs.ErrCompositeKey
	ErrPageWithoutLimit = errs.ErrPageWithoutLimit
	ErrInsertZeroRows   = errs.ErrInsertZeroRows
	ErrRawOnly          = errs.ErrRawOnly
	ErrSkipColumn       = errs.ErrSkipColumn
)
