package matching

import "strings"

// skillsScore averages per-skill credit over the offer requirements.
func skillsScore(candidate []CandidateSkill, required []RequiredSkill) (score float64, matched int) {
	if len(required) == 0 {
		return 100, 0
	}

	levels := make(map[string]SkillLevel, len(candidate))
	for _, skill := range candidate {
		key := NormalizeSkillName(skill.Name)
		if key == "" {
			continue
		}
		// duplicates keep the best declared level
		if current, ok := levels[key]; !ok || skill.Level.Ordinal() > current.Ordinal() {
			levels[key] = skill.Level
		}
	}

	total := 0.0
	for _, req := range required {
		level, ok := levels[NormalizeSkillName(req.Name)]
		if !ok {
			continue
		}

		credit := skillCredit(level, req.Level)
		if credit > 0 {
			matched++
		}
		total += credit
	}

	return clampScore(total / float64(len(required))), matched
}

// skillCredit is 100 when have meets want and proportional to the ordinals otherwise.
// A requirement without a level is satisfied by holding the skill at all.
func skillCredit(have, want SkillLevel) float64 {
	if !want.Known() || have.AtLeast(want) {
		return 100
	}
	return clampScore(100 * float64(have.Ordinal()) / float64(want.Ordinal()))
}

func contractScore(preferred []ContractType, offered ContractType) float64 {
	if len(preferred) == 0 || offered == "" {
		return 100
	}
	for _, c := range preferred {
		if strings.EqualFold(string(c), string(offered)) {
			return 100
		}
	}
	return 0
}

func experienceScore(years, required float64) float64 {
	if required <= 0 {
		return 100
	}
	if years <= 0 {
		return 0
	}
	return clampScore(100 * years / required)
}
