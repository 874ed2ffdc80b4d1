package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"linkgen/internal/driver"
	"linkgen/internal/ui"
)

type lowerOutcome struct {
	result *driver.Result
	err    error
}

// runLowerWithUI runs driver.Lower in the background and renders its
// progress events until it returns.
func runLowerWithUI(ctx context.Context, title string, req driver.Request) (*driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		reqCopy := req
		next := req.Progress
		reqCopy.Progress = func(ev driver.Event) {
			if next != nil {
				next(ev)
			}
			events <- ev
		}
		res, err := driver.Lower(ctx, reqCopy)
		outcomeCh <- lowerOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the driver from blocking on a dead UI
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
