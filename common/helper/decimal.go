package helper

import (
	"github.com/shopspring/decimal"
)

// TrimDecimal 四舍五入到2位小数后输出字符串
// 仅用于展示层：账务计算全程走最小货币单位的整数，不经过 decimal
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}
