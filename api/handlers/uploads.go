package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wandern-app/echo-archiver/api/responses"
	"github.com/wandern-app/echo-archiver/internal/pipeline"
	pkgerrors "github.com/wandern-app/echo-archiver/pkg/errors"
	"github.com/wandern-app/echo-archiver/pkg/logger"
)

// Runner executes one upload batch. Satisfied by *pipeline.Service.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

// RunUploads triggers a single pipeline run. GET and POST are equivalent so
// both a scheduler hitting the URL and a manual curl work.
func RunUploads(runner Runner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		opts, err := parseRunOptions(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if opts.SkipModeration {
			logg.Warn(ctx, "moderation gate disabled for this run")
		}

		summary, err := runner.Run(ctx, opts)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteRaw(w, http.StatusOK, summary)
	}
}

func parseRunOptions(r *http.Request) (pipeline.Options, error) {
	var opts pipeline.Options

	query := r.URL.Query()
	flags := []struct {
		name string
		dst  *bool
	}{
		{"priority_only", &opts.PriorityOnly},
		{"test_mode", &opts.TestMode},
		{"skip_moderation", &opts.SkipModeration},
	}

	for _, flag := range flags {
		raw := query.Get(flag.name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return pipeline.Options{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid boolean for "+flag.name).
				WithDetails(map[string]string{flag.name: raw})
		}
		*flag.dst = value
	}

	return opts, nil
}
