package ioapi

import (
	"fmt"
	"runtime"

	"github.com/clasier/catdb/pkg/errcode"
	"github.com/gnames/gn"
)

func RequestError(path string, err error) error {
	msg := "Request to <em>%s</em> failed"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.APIRequestError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: request %s: %w",
			fn.Name(), path, err),
	}
}

func StatusError(path string, status int) error {
	msg := "API returned status <em>%d</em> for %s"
	vars := []any{status, path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.APIStatusError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: request %s: status %d",
			fn.Name(), path, status),
	}
}

func DecodeError(path string, err error) error {
	msg := "Cannot decode API response from <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.APIDecodeError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: decode %s: %w",
			fn.Name(), path, err),
	}
}
