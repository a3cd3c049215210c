package main

import (
	"errors"
	"fmt"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

type shutdownStep struct {
	name string
	fn   func() error
}

// shutdownSequence releases resources in registration order once the server has stopped.
type shutdownSequence struct {
	steps []shutdownStep
}

func (s *shutdownSequence) add(name string, fn func() error) {
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

// run executes every step. A failing step is logged and does not stop the ones after it.
func (s *shutdownSequence) run() error {
	var errs []error
	for _, step := range s.steps {
		if err := step.fn(); err != nil {
			hlog.Errorf("%s close error: %v", step.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		hlog.Infof("%s closed.", step.name)
	}
	return errors.Join(errs...)
}
