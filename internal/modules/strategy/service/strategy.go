package service

import "signal_bot/internal/models"

// Frame is a read-only, index-addressable indicator table. *Series implements it.
type Frame interface {
	Len() int
	At(i int) models.IndicatorSnapshot
}

var _ Frame = (*Series)(nil)
