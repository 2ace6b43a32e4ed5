package main

import (
	"context"
	"errors"
	"io"

	"github.com/bamsammich/mirrorsync/internal/transport"
)

var errOffline = errors.New("not connected")

// offlineSession names a remote without connecting to it. It lets the
// engine load and print a snapshot; every remote command fails.
type offlineSession struct {
	host string
	root string
}

var _ transport.Session = offlineSession{}

func (s offlineSession) Host() string { return s.host }
func (s offlineSession) Root() string { return s.root }

func (offlineSession) List(context.Context, string) ([]transport.FileEntry, error) {
	return nil, errOffline
}

func (offlineSession) Get(context.Context, string, io.Writer) (int64, error) {
	return 0, errOffline
}

func (offlineSession) Put(context.Context, io.Reader, string) (int64, error) {
	return 0, errOffline
}

func (offlineSession) Mkdir(context.Context, string) error { return errOffline }
func (offlineSession) Remove(context.Context, string) error { return errOffline }
func (offlineSession) RemoveDir(context.Context, string) error { return errOffline }
func (offlineSession) Close() error { return nil }
