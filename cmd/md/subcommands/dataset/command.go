package dataset

import (
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	create, err := NewCreate()
	if err != nil {
		return nil, err
	}
	pairwise, err := NewPairwise()
	if err != nil {
		return nil, err
	}
	list, err := NewList()
	if err != nil {
		return nil, err
	}
	initial, err := NewInitial()
	if err != nil {
		return nil, err
	}
	rm, err := NewRm()
	if err != nil {
		return nil, err
	}
	retry, err := NewRetry()
	if err != nil {
		return nil, err
	}
	wait, err := NewWait()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate datasets of experiments.",
		struct{}{},
		flarc.WithSubcommand("create", create),
		flarc.WithSubcommand("pairwise", pairwise),
		flarc.WithSubcommand("list", list),
		flarc.WithSubcommand("initial", initial),
		flarc.WithSubcommand("rm", rm),
		flarc.WithSubcommand("retry", retry),
		flarc.WithSubcommand("wait", wait),
	)
}
