package helper

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// LuhnCheck 校验纯数字串的 Luhn 校验位
// 转账单号的数字尾段带校验位，银行模块入账前先走这里做格式校验
func LuhnCheck(code string) bool {
	if len(code) == 0 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	sum := 0
	double := false
	for i := len(code) - 1; i >= 0; i-- {
		d := int(code[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Generate9PlusLuhn 生成9位随机数字加1位 Luhn 校验位，共10位，允许前导零
// 随机源为 crypto/rand，失败时返回错误由调用方降级处理
func Generate9PlusLuhn() (string, error) {
	var b strings.Builder
	b.Grow(10)
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	body := b.String()
	return body + string('0'+luhnChecksum(body)), nil
}

// luhnChecksum 计算数字体的校验位（校验位视为追加在末尾）
func luhnChecksum(body string) byte {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte((10 - (sum % 10)) % 10)
}
