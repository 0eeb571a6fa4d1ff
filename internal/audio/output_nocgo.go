//go:build nocgo || !cgo
// +build nocgo !cgo

package audio

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// ErrNoDevice is returned by every Output method in nocgo builds.
var ErrNoDevice = errors.New("audio not available in nocgo build")

// Output is a stub for builds without CGO.
type Output struct{}

// NewOutput always fails in nocgo builds.
func NewOutput(*log.Logger) (*Output, error) { return nil, ErrNoDevice }

func (o *Output) SetVolume(float64) error { return ErrNoDevice }
func (o *Output) Play(context.Context, *Clip) error { return ErrNoDevice }
func (o *Output) Stop() error { return nil }
func (o *Output) Suspend() error { return ErrNoDevice }
func (o *Output) Resume(context.Context) error { return ErrNoDevice }
func (o *Output) Close() error { return nil }
