package profile

import (
	"fmt"
	"strconv"
)

// New returns an empty but structurally complete document: every section is
// present so the editor can operate on it immediately.
func New() Document {
	return Document{
		BasicInfo: BasicInfo{
			PersonalInfo: map[string]string{},
			WorkInfo:     map[string]string{},
		},
		Resume:     []ResumeEntry{},
		Evaluation: map[string]string{},
		Rewards:    []RewardEntry{},
		Family:     []FamilyMember{},
	}
}

// Clone returns a deep, independent copy of the document.
func (d Document) Clone() Document {
	cp := d

	if d.BasicInfo.PersonalInfo != nil {
		cp.BasicInfo.PersonalInfo = make(map[string]string, len(d.BasicInfo.PersonalInfo))
		for k, v := range d.BasicInfo.PersonalInfo {
			cp.BasicInfo.PersonalInfo[k] = v
		}
	}
	if d.BasicInfo.WorkInfo != nil {
		cp.BasicInfo.WorkInfo = make(map[string]string, len(d.BasicInfo.WorkInfo))
		for k, v := range d.BasicInfo.WorkInfo {
			cp.BasicInfo.WorkInfo[k] = v
		}
	}
	if d.Resume != nil {
		cp.Resume = make([]ResumeEntry, len(d.Resume))
		copy(cp.Resume, d.Resume)
	}
	if d.Evaluation != nil {
		cp.Evaluation = make(map[string]string, len(d.Evaluation))
		for k, v := range d.Evaluation {
			cp.Evaluation[k] = v
		}
	}
	if d.Rewards != nil {
		cp.Rewards = make([]RewardEntry, len(d.Rewards))
		copy(cp.Rewards, d.Rewards)
	}
	if d.Family != nil {
		cp.Family = make([]FamilyMember, len(d.Family))
		copy(cp.Family, d.Family)
	}
	return cp
}

// Validate checks that every section is structurally present. A nil map or
// slice means the section is absent, which the editor treats as an error.
func (d Document) Validate() error {
	if d.BasicInfo.PersonalInfo == nil {
		return fmt.Errorf("%w: %s.%s", ErrMissingSection, SectionBasicInfo, SubsectionPersonalInfo)
	}
	if d.BasicInfo.WorkInfo == nil {
		return fmt.Errorf("%w: %s.%s", ErrMissingSection, SectionBasicInfo, SubsectionWorkInfo)
	}
	if d.Resume == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, SectionResume)
	}
	if d.Evaluation == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, SectionEvaluation)
	}
	if d.Rewards == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, SectionRewards)
	}
	if d.Family == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, SectionFamily)
	}
	return nil
}

// Flatten produces dotted-path keys for every scalar value in the document,
// plus bare leaf keys for the basic-info labels. The table filler matches
// template placeholders against this map.
//
// Examples: "basic_info.personal_info.姓名", "姓名", "resume.0.content",
// "evaluation.2023".
func (d Document) Flatten() map[string]string {
	out := make(map[string]string)

	for k, v := range d.BasicInfo.PersonalInfo {
		out[SectionBasicInfo+"."+SubsectionPersonalInfo+"."+k] = v
		out[k] = v
	}
	for k, v := range d.BasicInfo.WorkInfo {
		out[SectionBasicInfo+"."+SubsectionWorkInfo+"."+k] = v
		out[k] = v
	}
	for i, e := range d.Resume {
		p := SectionResume + "." + strconv.Itoa(i)
		out[p+".time"] = e.Time
		out[p+".type"] = e.Type
		out[p+".content"] = e.Content
	}
	for year, result := range d.Evaluation {
		out[SectionEvaluation+"."+year] = result
	}
	for i, e := range d.Rewards {
		p := SectionRewards + "." + strconv.Itoa(i)
		out[p+".time"] = e.Time
		out[p+".name"] = e.Name
		out[p+".unit"] = e.Unit
		out[p+".reason"] = e.Reason
	}
	for i, e := range d.Family {
		p := SectionFamily + "." + strconv.Itoa(i)
		out[p+".relation"] = e.Relation
		out[p+".name"] = e.Name
		out[p+".age"] = e.Age
		out[p+".id_number"] = e.IDNumber
		out[p+".political_status"] = e.PoliticalStatus
		out[p+".employer"] = e.Employer
	}
	return out
}
