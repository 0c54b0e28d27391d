package rating

// 积分以 1/100 分为最小单位存储：150000 即 1500.00 分。
const (
	// DefaultRating 新玩家初始积分
	DefaultRating = 150000
	// Step 每局固定涨跌幅
	Step = 1000
	// MinRating 积分下限，输家扣分不会低于该值
	MinRating = 100000
)

// Apply 计算一局胜负后的双方新积分。
// 胜者 +Step（饱和加法，无上限封顶）；败者 -Step，下限 MinRating。
// 纯函数：无 IO、无时钟，相同输入恒定输出。
func Apply(winner, loser int64) (newWinner, newLoser int64) {
	newWinner = winner + Step
	if newWinner < winner {
		// int64 溢出时饱和
		newWinner = winner
	}

	newLoser = loser - Step
	if newLoser < MinRating {
		newLoser = MinRating
	}
	return newWinner, newLoser
}
