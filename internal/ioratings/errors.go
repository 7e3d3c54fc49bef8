package ioratings

import (
	"fmt"
	"runtime"

	"github.com/clasier/catdb/pkg/errcode"
	"github.com/gnames/gn"
)

func ReadError(path string, err error) error {
	msg := "Cannot read ratings file <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.RatingsReadError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: file %s: %w", fn.Name(), path, err),
	}
}

func InvalidRecordError(line int, err error) error {
	msg := "Invalid rating record on line <em>%d</em>"
	vars := []any{line}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.RatingsInvalidRecordError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: line %d: %w", fn.Name(), line, err),
	}
}
