package middleware

import (
	"os"
	"testing"

	"bg-server/common/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}
