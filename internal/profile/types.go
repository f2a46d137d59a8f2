package profile

import "errors"

// ErrMissingSection is returned when a document section that must be present
// (possibly empty) is absent.
var ErrMissingSection = errors.New("missing document section")

// Section names as they appear in the JSON document and in editor paths.
const (
	SectionBasicInfo  = "basic_info"
	SectionResume     = "resume"
	SectionEvaluation = "evaluation"
	SectionRewards    = "rewards"
	SectionFamily     = "family"

	SubsectionPersonalInfo = "personal_info"
	SubsectionWorkInfo     = "work_info"
)

// Document is one person's full profile. Every section must be present
// (possibly empty) before the editor operates on it; a nil section is an
// error, not an implicit empty default.
type Document struct {
	BasicInfo  BasicInfo         `json:"basic_info"`
	Resume     []ResumeEntry     `json:"resume"`
	Evaluation map[string]string `json:"evaluation"` // year label → result label
	Rewards    []RewardEntry     `json:"rewards"`
	Family     []FamilyMember    `json:"family"`
}

// BasicInfo holds the two free-form sub-records of the basic-info section.
// Field labels are arbitrary strings chosen by the backend (the stored data
// uses Chinese labels such as 姓名 and 照片), so these stay open maps rather
// than fixed structs.
type BasicInfo struct {
	PersonalInfo map[string]string `json:"personal_info"`
	WorkInfo     map[string]string `json:"work_info"`
}

// ResumeEntry is one row of the resume section.
type ResumeEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// RewardEntry is one row of the rewards section.
type RewardEntry struct {
	Time   string `json:"time"`
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Reason string `json:"reason"`
}

// FamilyMember is one row of the family section.
type FamilyMember struct {
	Relation        string `json:"relation"`
	Name            string `json:"name"`
	Age             string `json:"age"`
	IDNumber        string `json:"id_number"`
	PoliticalStatus string `json:"political_status"`
	Employer        string `json:"employer"`
}
