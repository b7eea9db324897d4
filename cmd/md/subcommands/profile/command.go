package profile

import (
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	set, err := NewSet()
	if err != nil {
		return nil, err
	}
	show, err := NewShow()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manage connection profiles.",
		struct{}{},
		flarc.WithSubcommand("set", set),
		flarc.WithSubcommand("show", show),
	)
}
