package progression

type Config struct {
	// XP awarded for completing a quest, reclaimed symmetrically when a
	// quest is un-completed.
	QuestXP int64

	// Threshold multiplier: level n requires n * XPPerLevel to advance.
	XPPerLevel int64
}

func NewDefaultConfig() *Config {
	return &Config{
		QuestXP:    50,
		XPPerLevel: 1000,
	}
}

// Threshold returns the XP needed to leave the given level.
func (c *Config) Threshold(level int) int64 {
	return int64(level) * c.XPPerLevel
}
