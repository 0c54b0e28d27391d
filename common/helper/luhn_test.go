package helper

import (
	"testing"
)

func TestLuhnCheckKnownVectors(t *testing.T) {
	// 79927398713 是 Luhn 算法的经典合法样例
	if !LuhnCheck("79927398713") {
		t.Error("known valid vector rejected")
	}
	if LuhnCheck("79927398710") {
		t.Error("known invalid vector accepted")
	}
	if LuhnCheck("") || LuhnCheck("12a4") {
		t.Error("non-digit input should fail")
	}
}

func TestLuhnGenerateAndCheck(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate9PlusLuhn()
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if len(code) != 10 {
			t.Fatalf("len != 10: %s", code)
		}
		for j := 0; j < len(code); j++ {
			if code[j] < '0' || code[j] > '9' {
				t.Fatalf("non-digit: %s", code)
			}
		}
		if !LuhnCheck(code) {
			t.Fatalf("luhn check fail: %s", code)
		}
		// 篡改末位后校验必须失败
		b := []byte(code)
		b[9] = byte('0' + (int(b[9]-'0')+1)%10)
		if LuhnCheck(string(b)) {
			t.Fatalf("luhn should fail after mutation: %s -> %s", code, string(b))
		}
	}
}
