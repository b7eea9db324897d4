package experiment

import (
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	create, err := NewCreate()
	if err != nil {
		return nil, err
	}
	show, err := NewShow()
	if err != nil {
		return nil, err
	}
	wait, err := NewWait()
	if err != nil {
		return nil, err
	}
	metadata, err := NewMetadata()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate experiments.",
		struct{}{},
		flarc.WithSubcommand("create", create),
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("wait", wait),
		flarc.WithSubcommand("metadata", metadata),
	)
}
