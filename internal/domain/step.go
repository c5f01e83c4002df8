package domain

import "fmt"

// Step is the index of one stage of the profile wizard.
type Step int

const (
	StepPersonalInfo Step = iota
	StepCredentials
	StepProjects
	StepReview
)

const (
	FirstStep = StepPersonalInfo
	LastStep  = StepReview
	StepCount = int(LastStep) + 1
)

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Number is the 1-based position shown to users.
func (s Step) Number() int {
	return int(s) + 1
}

func (s Step) String() string {
	switch s {
	case StepPersonalInfo:
		return "personal-info"
	case StepCredentials:
		return "credentials"
	case StepProjects:
		return "projects"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ClampStep converts an arbitrary index into the valid step range.
func ClampStep(i int) Step {
	if i < int(FirstStep) {
		return FirstStep
	}
	if i > int(LastStep) {
		return LastStep
	}
	return Step(i)
}
