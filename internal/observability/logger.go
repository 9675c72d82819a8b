package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/shmframe/internal/logging"
)

// ComponentLogger derives a structured logger tagged with the component name
// from the process logger configured by the logging package.
func ComponentLogger(app, component string) zerolog.Logger {
	l := logs.Logger()
	return l.With().Str("app", app).Str("component", component).Logger()
}
