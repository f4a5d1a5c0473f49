package statsservice

var (
	playerKillTable = []int{10, 15, 25, 40, 60}
	botKillTable    = []int{5, 8, 12, 20, 30}
	streakMessages  = map[int]string{
		2: "Double Kill",
		3: "Triple Kill",
		4: "Killing Spree",
		5: "God Like",
	}
)

func fromTable(table []int, streak int) int {
	if streak < 1 {
		return 0
	}
	if streak > len(table) {
		streak = len(table)
	}
	return table[streak-1]
}

// PlayerKillScore is the score for a player kill at the given streak (1-based).
func PlayerKillScore(streak int) int { return fromTable(playerKillTable, streak) }

// BotKillScore is the score for a bot kill at the given streak (1-based).
func BotKillScore(streak int) int { return fromTable(botKillTable, streak) }

// StreakMessage returns the celebration for a streak, or "" when there is none.
func StreakMessage(streak int) string { return streakMessages[streak] }
