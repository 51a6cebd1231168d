package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucasnoah/compiletutor/internal/backend"
	"github.com/lucasnoah/compiletutor/internal/process"
)

// Message turns a pipeline error into a single line suitable for display.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		authErr  *backend.AuthError
		notFound *backend.ModelNotFoundError
		unavail  *backend.UnavailableError
		spawnErr *process.SpawnError
	)
	switch {
	case errors.Is(err, ErrNoActiveSession):
		return "No analysis yet. Analyze a file before asking follow-up questions."
	case errors.Is(err, ErrBusy):
		return "An analysis is already running. Wait for it to finish and try again."
	case errors.Is(err, ErrEmptyQuestion):
		return "Type a question first."
	case errors.As(err, &authErr):
		if authErr.Detail == "" {
			return fmt.Sprintf("No API key configured for %s. Set it in the config file or environment.", authErr.Backend)
		}
		return fmt.Sprintf("The API key for %s was rejected: %s", authErr.Backend, authErr.Detail)
	case errors.As(err, &notFound):
		return fmt.Sprintf("Model file missing: %s", notFound.Path)
	case errors.As(err, &unavail):
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Sprintf("%s did not answer in time. Try again.", unavail.Backend)
		}
		return fmt.Sprintf("%s could not produce an answer. Try again. (%s)", unavail.Backend, unavailDetail(unavail))
	case errors.As(err, &spawnErr):
		return fmt.Sprintf("Could not start %s: %v", spawnErr.Command, spawnErr.Err)
	}
	return err.Error()
}

func unavailDetail(e *backend.UnavailableError) string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}
