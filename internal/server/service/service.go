package service

import "github.com/kasblog/kasblog/pkg/libkb"

// CreateParams are the fields of a short URL creation request.
type CreateParams = libkb.ShortURLRequest
