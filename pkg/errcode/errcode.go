package errcode

import (
	"github.com/gnames/gn"
)

const (
	UnknownError gn.ErrorCode = iota

	// File System errors
	CreateDirError
	CopyFileError
	ReadFileError

	// Logging errors
	CreateLogFileError

	// Storage errors
	StoreConnectionError
	StoreNotConnectedError
	StoreUnknownBackendError
	StoreCreateTableError
	StoreAlterTableError
	StoreUpsertError
	StoreQueryError
	StoreDropTableError
	StoreTransactionError
	StoreIdentifierError

	// Catalog API errors
	APIRequestError
	APIStatusError
	APIDecodeError

	// Ingest errors
	IngestSchemaError
	IngestReferenceDataError
	IngestAttributeColumnError
	IngestFetchError
	IngestFlushError

	// Ratings errors
	RatingsReadError
	RatingsInvalidRecordError
)
