package catalog

import (
	"strconv"
	"strings"
)

// ConcernAction says what the conversation should do with a concern.
type ConcernAction int

const (
	// ConcernRecommend recommends the first doctor of the specialty.
	ConcernRecommend ConcernAction = iota
	// ConcernListDoctors shows the doctor list so the patient can pick.
	ConcernListDoctors
	// ConcernNotSure recommends general medicine with a reassurance note.
	ConcernNotSure
)

// ConcernOption is one row of the health-concern menu.
type ConcernOption struct {
	Number    int
	Emoji     string
	Label     string
	Specialty Specialty
	Action    ConcernAction
}

// Concern is the classified reading of a health-concern reply.
type Concern struct {
	Option    int // 0 for free text
	Specialty Specialty
	Action    ConcernAction
}

var concernMenu = []ConcernOption{
	{1, "🤒", "Fever/Cold/Cough", SpecialtyGeneral, ConcernRecommend},
	{2, "😣", "Pain/Injury", SpecialtyGeneral, ConcernRecommend},
	{3, "🔍", "General Health Check", SpecialtyGeneral, ConcernRecommend},
	{4, "❤️", "Heart/Blood Pressure", SpecialtyCardiology, ConcernRecommend},
	{5, "🦴", "Bone/Joint Issues", SpecialtyOrthopedics, ConcernRecommend},
	{6, "👁️", "Eye Problems", SpecialtyGeneral, ConcernRecommend},
	{7, "🦷", "Dental Issues", SpecialtyDental, ConcernRecommend},
	{8, "👶", "Child Health", SpecialtyGeneral, ConcernRecommend},
	{9, "👩", "Women's Health", SpecialtyGeneral, ConcernRecommend},
	{10, "👨‍⚕️", "Specific Doctor Request", SpecialtyGeneral, ConcernListDoctors},
	{11, "❓", "Not Sure", SpecialtyGeneral, ConcernNotSure},
}

// ConcernMenu returns the fixed health-concern menu.
func ConcernMenu() []ConcernOption {
	return append([]ConcernOption(nil), concernMenu...)
}

var concernKeywords = []struct {
	words     []string
	specialty Specialty
}{
	{[]string{"heart", "blood pressure", "chest", "cardio", "bp"}, SpecialtyCardiology},
	{[]string{"bone", "joint", "fracture", "knee", "back pain", "ortho"}, SpecialtyOrthopedics},
	{[]string{"dental", "tooth", "teeth", "gum"}, SpecialtyDental},
}

// ClassifyConcern reads a numeric menu choice or free-text description.
// Numbers outside the menu and blank input are rejected; any other text
// is accepted and falls back to general medicine.
func ClassifyConcern(input string) (Concern, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return Concern{}, false
	}
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 || n > len(concernMenu) {
			return Concern{}, false
		}
		opt := concernMenu[n-1]
		return Concern{Option: n, Specialty: opt.Specialty, Action: opt.Action}, true
	}
	switch {
	case strings.Contains(text, "specific doctor"):
		return Concern{Specialty: SpecialtyGeneral, Action: ConcernListDoctors}, true
	case strings.Contains(text, "not sure"):
		return Concern{Specialty: SpecialtyGeneral, Action: ConcernNotSure}, true
	}
	for _, group := range concernKeywords {
		for _, w := range group.words {
			if containsWord(text, w) {
				return Concern{Specialty: group.specialty, Action: ConcernRecommend}, true
			}
		}
	}
	return Concern{Specialty: SpecialtyGeneral, Action: ConcernRecommend}, true
}

// containsWord matches multi-word phrases as substrings and short
// single words on word boundaries so "bp" does not fire inside "bpm".
func containsWord(text, word string) bool {
	if strings.Contains(word, " ") || len(word) > 3 {
		return strings.Contains(text, word)
	}
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
