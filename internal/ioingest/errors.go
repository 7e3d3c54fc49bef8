package ioingest

import (
	"fmt"
	"runtime"

	"github.com/clasier/catdb/pkg/errcode"
	"github.com/gnames/gn"
)

func SchemaError(table string, err error) error {
	msg := "Cannot prepare table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.IngestSchemaError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: table %s: %w", fn.Name(), table, err),
	}
}

func ReferenceDataError(field string, err error) error {
	msg := `Cannot load the <em>%s</em> reference list

<em>Possible causes:</em>
  - The curriculum API is not reachable
  - The access token is missing or expired`
	vars := []any{field}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.IngestReferenceDataError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: list of values %s: %w", fn.Name(), field, err),
	}
}

func AttributeColumnError(offeringID string, err error) error {
	msg := "Attribute of offering <em>%s</em> maps to a reserved column"
	vars := []any{offeringID}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.IngestAttributeColumnError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: offering %s: %w", fn.Name(), offeringID, err),
	}
}

func FetchError(what string, err error) error {
	msg := `Fetching <em>%s</em> failed, stopping

Set <em>ingest.continue_on_error</em> to true to skip failed fetches.`
	vars := []any{what}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.IngestFetchError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: fetch %s: %w", fn.Name(), what, err),
	}
}

func FlushError(subject string, err error) error {
	msg := "Cannot save rows of subject <em>%s</em>"
	vars := []any{subject}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.IngestFlushError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: flush %s: %w", fn.Name(), subject, err),
	}
}
