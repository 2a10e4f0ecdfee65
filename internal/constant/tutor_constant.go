package constant

// Chat roles as stored in history and sent to providers
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// Education levels, primary through final secondary year (French system).
const (
	LevelCP        = "cp"
	LevelCE1       = "ce1"
	LevelCE2       = "ce2"
	LevelCM1       = "cm1"
	LevelCM2       = "cm2"
	LevelSixieme   = "sixieme"
	LevelCinquieme = "cinquieme"
	LevelQuatrieme = "quatrieme"
	LevelTroisieme = "troisieme"
	LevelSeconde   = "seconde"
	LevelPremiere  = "premiere"
	LevelTerminale = "terminale"
)

// Order matters: index is used to pick vocabulary complexity.
var EducationLevels = []string{
	LevelCP, LevelCE1, LevelCE2, LevelCM1, LevelCM2,
	LevelSixieme, LevelCinquieme, LevelQuatrieme, LevelTroisieme,
	LevelSeconde, LevelPremiere, LevelTerminale,
}

// IsValidLevel reports whether level is one of the 12 known values.
func IsValidLevel(level string) bool {
	for _, l := range EducationLevels {
		if l == level {
			return true
		}
	}
	return false
}

// LevelIndex returns the position of level in the curriculum (0 = cp),
// or -1 when unknown.
func LevelIndex(level string) int {
	for i, l := range EducationLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// Document types returned by the extraction/classification service
const (
	DocumentTypeCourse   = "course"
	DocumentTypeExercise = "exercise"
	DocumentTypeImage    = "image"
	DocumentTypeOther    = "other"
)

// Finish reasons reported in the terminal stream chunk
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
	FinishReasonError  = "error"
)
