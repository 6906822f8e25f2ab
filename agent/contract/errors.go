package contract

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrModelInvoke   = errors.New("model invoke failed")
	ErrSchemaFetch   = errors.New("schema fetch failed")
	ErrSQLGeneration = errors.New("no usable sql query in model response")
	ErrSQLValidation = errors.New("sql validation failed")
	ErrSQLExecution  = errors.New("sql execution failed")
	ErrAnalysis      = errors.New("analysis failed")
)
