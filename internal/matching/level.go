package matching

import (
	"fmt"
	"strings"
)

// SkillLevel is an ordinal proficiency level. Comparison is by ordinal value.
type SkillLevel int

const (
	LevelUnknown SkillLevel = iota
	LevelBeginner
	LevelIntermediate
	LevelAdvanced
	LevelExpert
)

var levelNames = map[SkillLevel]string{
	LevelUnknown:      "UNKNOWN",
	LevelBeginner:     "BEGINNER",
	LevelIntermediate: "INTERMEDIATE",
	LevelAdvanced:     "ADVANCED",
	LevelExpert:       "EXPERT",
}

// ParseSkillLevel converts a level name into a SkillLevel. Empty input maps to LevelUnknown.
func ParseSkillLevel(s string) (SkillLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return LevelUnknown, nil
	}

	for level, levelName := range levelNames {
		if levelName == name {
			return level, nil
		}
	}

	return LevelUnknown, fmt.Errorf("unknown skill level %q", s)
}

func (l SkillLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("SkillLevel(%d)", int(l))
}

// Ordinal returns the position of the level on the scale, 0 for unknown.
func (l SkillLevel) Ordinal() int {
	if l < LevelUnknown || l > LevelExpert {
		return 0
	}
	return int(l)
}

func (l SkillLevel) Known() bool {
	return l.Ordinal() > 0
}

// AtLeast reports whether l meets or exceeds other.
func (l SkillLevel) AtLeast(other SkillLevel) bool {
	return l.Ordinal() >= other.Ordinal()
}

func (l SkillLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *SkillLevel) UnmarshalText(text []byte) error {
	level, err := ParseSkillLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
