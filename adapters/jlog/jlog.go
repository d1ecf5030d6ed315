// Package jlog adapts jettison's structured logger to the tracker's Logger
// interface.
package jlog

import (
	"context"

	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/andrewwormald/floortrack"
)

func New() Logger {
	return Logger{}
}

var _ floortrack.Logger = (*Logger)(nil)

type Logger struct{}

func (Logger) Debug(ctx context.Context, msg string, mkv floortrack.MKV) {
	kv := make(map[string]any, len(mkv))
	for k, v := range mkv {
		kv[k] = v
	}

	log.Info(ctx, msg, j.MKV(kv))
}

func (Logger) Error(ctx context.Context, err error) {
	log.Error(ctx, err)
}
