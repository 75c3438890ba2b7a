package models

// Actor is a named participant of a workflow with an hourly rate in yen.
type Actor struct {
	Name       string `json:"name"        yaml:"name"        validate:"required"`
	HourlyRate int    `json:"hourly_rate" yaml:"hourly_rate" validate:"min=0"`
}

// FindActor returns the actor whose name matches exactly.
func FindActor(roster []Actor, name string) (Actor, bool) {
	for _, actor := range roster {
		if actor.Name == name {
			return actor, true
		}
	}

	return Actor{}, false
}
